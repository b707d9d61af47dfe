package dns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupLiteralIP(t *testing.T) {
	r := NewResolver()
	r.lookup = func(context.Context, *net.Resolver, string) ([]string, error) {
		t.Fatal("literal IPs must not be resolved")
		return nil, nil
	}

	ip, err := r.Lookup(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
}

func TestLookupPrefersIPv4(t *testing.T) {
	r := NewResolver()
	r.lookup = func(context.Context, *net.Resolver, string) ([]string, error) {
		return []string{"2001:db8::1", "192.0.2.10"}, nil
	}

	ip, err := r.Lookup(context.Background(), "call.example.com")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip)
}

func TestLookupFallsBackToPublicServers(t *testing.T) {
	calls := 0
	r := &Resolver{
		Servers:       []string{"192.0.2.53"},
		LocalTimeout:  100 * time.Millisecond,
		RemoteTimeout: time.Second,
	}
	r.lookup = func(_ context.Context, res *net.Resolver, _ string) ([]string, error) {
		calls++
		if !res.PreferGo {
			return nil, errors.New("system resolver broken")
		}
		return []string{"198.51.100.7"}, nil
	}

	ip, err := r.Lookup(context.Background(), "call.example.com")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", ip)
	assert.Equal(t, 2, calls)
}

func TestLookupAllFail(t *testing.T) {
	r := &Resolver{
		Servers:       []string{"192.0.2.53", "192.0.2.54"},
		LocalTimeout:  100 * time.Millisecond,
		RemoteTimeout: time.Second,
		lookup: func(context.Context, *net.Resolver, string) ([]string, error) {
			return nil, errors.New("nxdomain")
		},
	}

	_, err := r.Lookup(context.Background(), "call.example.com")
	assert.ErrorContains(t, err, "all 2 public DNS servers failed")
}
