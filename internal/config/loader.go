// Package config fills env-tagged structs from the process environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type loaded struct {
	once  sync.Once
	value any
	err   error
}

var (
	dotenv sync.Once
	byType sync.Map // reflect.Type -> *loaded
)

// Load parses the environment into v. A .env file in the working
// directory is read once, if present. Each type is parsed once; later
// calls copy the first result.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenv.Do(func() { _ = godotenv.Load() })

	l, _ := byType.LoadOrStore(reflect.TypeFor[T](), new(loaded))
	entry := l.(*loaded)
	entry.once.Do(func() {
		var cfg T
		if err := env.Parse(&cfg); err != nil {
			entry.err = errors.Join(ErrParsingConfig, err)
			return
		}
		entry.value = cfg
	})
	if entry.err != nil {
		return entry.err
	}

	*v = entry.value.(T)
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}
