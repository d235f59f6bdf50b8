// Package transports registers every built-in transport with the default
// registry. Import it for side effects.
package transports

import (
	_ "github.com/drblury/hookflow/transport/aws"
	_ "github.com/drblury/hookflow/transport/channel"
	_ "github.com/drblury/hookflow/transport/http"
	_ "github.com/drblury/hookflow/transport/kafka"
	_ "github.com/drblury/hookflow/transport/nats"
	_ "github.com/drblury/hookflow/transport/rabbitmq"
)
