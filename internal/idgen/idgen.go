// Package idgen выдаёт первичные ключи для кликов, конверсий, офферов и
// площадок без центральной последовательности.
package idgen

import (
	"github.com/google/uuid"
)

// Minter генератор идентификаторов
type Minter interface {
	NewID() string
}

// UUIDMinter UUID версии 4, 122 случайных бита
type UUIDMinter struct{}

func NewUUIDMinter() UUIDMinter {
	return UUIDMinter{}
}

func (UUIDMinter) NewID() string {
	return uuid.NewString()
}
