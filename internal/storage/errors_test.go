package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, want: true},
		{name: "wrapped connection refused", err: fmt.Errorf("ping: %w", &pq.Error{Code: "08001"}), want: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "connection done", err: sql.ErrConnDone, want: true},
		{name: "bad conn", err: fmt.Errorf("%w: begin: %w", ErrStoreFailed, driver.ErrBadConn), want: true},
		{name: "generic", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}
