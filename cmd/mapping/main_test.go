package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

func TestOnlyAccount(t *testing.T) {
	accs := []repository.Account{{ID: 1, Nickname: "a"}, {ID: 2, Nickname: "b"}, {ID: 3, Nickname: "c"}}

	got := onlyAccount(accs, 2)
	assert.Equal(t, []repository.Account{{ID: 2, Nickname: "b"}}, got)

	assert.Empty(t, onlyAccount(accs, 9))
	assert.Empty(t, onlyAccount(nil, 1))
}
