package minigame

import (
	"github.com/aarondl/opt/omit"
)

// set overwrites *dst when v is set.
func set[T any](dst *T, v omit.Val[T]) {
	if x, ok := v.Get(); ok {
		*dst = x
	}
}
