package core

import (
	"reflect"

	"github.com/weftnet/weft/state"
)

func Get[T state.WeftModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
