package app

import "github.com/google/uuid"

func newPairID() string { return uuid.NewString() }
