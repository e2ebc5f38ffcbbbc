// Package handlers binds effect protocol messages to the services that act
// on them. Each handler deals with the message kinds it is registered for.
package handlers

import (
	"fmt"

	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func unexpected(msg protocol.Message) error {
	return fmt.Errorf("unexpected message %T: %w", msg, errs.ErrMalformedMessage)
}
