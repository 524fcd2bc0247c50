// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncAdapter(t *testing.T) {
	adapter := FuncAdapter[int, string](func(ctx context.Context, input int) (string, error) {
		return strconv.Itoa(input), nil
	})

	output, err := adapter.Call(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "42", output)
}

func TestConstFunc(t *testing.T) {
	fn := ConstFunc("127.0.0.1:443")

	output, err := fn.Call(context.Background(), Unit{})

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:443", output)
}

func TestCompose2(t *testing.T) {
	t.Run("success path", func(t *testing.T) {
		op1 := FuncAdapter[int, string](func(ctx context.Context, n int) (string, error) {
			return "hello", nil
		})
		op2 := FuncAdapter[string, int](func(ctx context.Context, s string) (int, error) {
			return len(s), nil
		})

		result, err := Compose2[int, string, int](op1, op2).Call(context.Background(), 42)

		require.NoError(t, err)
		assert.Equal(t, 5, result)
	})

	t.Run("first operation fails", func(t *testing.T) {
		wantErr := errors.New("op1 failed")
		op1 := FuncAdapter[int, string](func(ctx context.Context, n int) (string, error) {
			return "", wantErr
		})
		op2 := FuncAdapter[string, int](func(ctx context.Context, s string) (int, error) {
			t.Fatal("op2 should not be called")
			return 0, nil
		})

		_, err := Compose2[int, string, int](op1, op2).Call(context.Background(), 42)

		require.ErrorIs(t, err, wantErr)
	})
}

// Compose3 and Compose4 run the stages in order and share the context.
func TestComposeN(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")

	var trace []string
	stage := func(name string) Func[string, string] {
		return FuncAdapter[string, string](func(ctx context.Context, s string) (string, error) {
			assert.Equal(t, "value", ctx.Value(ctxKey{}))
			trace = append(trace, name)
			return s + name, nil
		})
	}

	out3, err := Compose3(ConstFunc(""), stage("a"), stage("b")).Call(ctx, Unit{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out3)

	out4, err := Compose4(ConstFunc(">"), stage("a"), stage("b"), stage("c")).Call(ctx, Unit{})
	require.NoError(t, err)
	assert.Equal(t, ">abc", out4)

	assert.Equal(t, []string{"a", "b", "a", "b", "c"}, trace)
}
