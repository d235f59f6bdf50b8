// Package developer provides a strategy for local development. It publishes
// every request's parameters under the event type given in the "type"
// parameter and performs no verification at all, so it must never be mounted
// in production.
//
//	curl -X POST -d type=ping -d id=1 localhost:8080/hooks/developer
//
// publishes {"type": "ping", "id": "1"} as "developer.ping".
package developer

import (
	runtime "github.com/drblury/hookflow/internal/runtime"
)

const Name = "developer"

// TypeParam names the parameter holding the event type.
const TypeParam = "type"

// Strategy is the registered developer class.
var Strategy = runtime.MustDefine(Name, func(c *runtime.Class) error {
	c.SetEventType(func(ctx *runtime.Context) (string, error) {
		params, err := ctx.Params()
		if err != nil {
			return "", err
		}
		return params.String(TypeParam), nil
	})
	c.SetEvent(func(ctx *runtime.Context) (any, error) {
		params, err := ctx.Params()
		if err != nil {
			return nil, err
		}
		return params, nil
	})
	return nil
})
