// Package all links every built-in driver into the binary so each one
// registers itself with the drivers registry.
package all

import (
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/genericrest"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/localbridge"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/mqttbridge"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/networktcp"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/simulator"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/stripeterminal"
)
