package model

import (
	"errors"
)

var (
	ErrSpawn = errors.New("flow could not be started")
	ErrParse = errors.New("flow output is not valid json")
)
