package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParse     = errors.New("config: cannot parse environment")
	ErrNilTarget = errors.New("config: nil target")
)

// parsed holds the outcome of the single env.Parse run for one type.
type parsed struct {
	once sync.Once
	val  any
	err  error
}

var (
	byType     sync.Map // reflect.Type -> *parsed
	dotenvOnce sync.Once
)

// Load fills v from the environment according to its `env` tags. A .env
// file in the working directory is read on first use if it exists. Each type
// is parsed once per process, errors included; later calls get a copy.
//
//	type BreakerConfig struct {
//		Threshold    int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
//		OpenDuration time.Duration `env:"BREAKER_OPEN_DURATION" envDefault:"60s"`
//	}
//
//	var cfg BreakerConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilTarget
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	e, _ := byType.LoadOrStore(reflect.TypeFor[T](), &parsed{})
	p := e.(*parsed)
	p.once.Do(func() {
		var out T
		if err := env.Parse(&out); err != nil {
			p.err = errors.Join(ErrParse, err)
			return
		}
		p.val = out
	})
	if p.err != nil {
		return p.err
	}
	*v = p.val.(T)
	return nil
}

// MustLoad is Load for process startup.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}
