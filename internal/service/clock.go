package service

import (
	"crypto/rand"
	"io"
	"time"
)

// Clock es la unica fuente de tiempo de los calculos de expiracion.
type Clock interface {
	Now() time.Time
}

// RandomSource entrega bytes criptograficamente seguros.
type RandomSource io.Reader

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock devuelve el reloj de pared del proceso.
func SystemClock() Clock { return systemClock{} }

// SystemRandom devuelve crypto/rand.Reader.
func SystemRandom() RandomSource { return rand.Reader }
