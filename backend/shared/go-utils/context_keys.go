// go-utils/context_keys.go

package utils

// ctxKey is unexported to prevent collisions.
type ctxKey string

// CtxKeyGateID stores the authenticated gate device id.
const CtxKeyGateID ctxKey = "gateID"
