package model

import "errors"

var errBoom = errors.New("boom")
