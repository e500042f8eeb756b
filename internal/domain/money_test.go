package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspay/backend/internal/domain"
)

func TestParseMoney(t *testing.T) {
	m, err := domain.ParseMoney("150.75")
	require.NoError(t, err)
	assert.Equal(t, "150.75", m.String())

	m, err = domain.ParseMoney("0.1")
	require.NoError(t, err)
	assert.Equal(t, "0.10", m.String())

	_, err = domain.ParseMoney("not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = domain.ParseMoney("")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Negative parses; positivity is the operation's concern.
	m, err = domain.ParseMoney("-5")
	require.NoError(t, err)
	assert.False(t, m.IsPositive())
	assert.True(t, m.IsNegative())
}

func TestParseMoney_RejectsSubCentPrecision(t *testing.T) {
	for _, s := range []string{"10.005", "0.001", "99.999"} {
		_, err := domain.ParseMoney(s)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %q", s)
	}

	// Extra trailing zeros are the same value, not extra precision.
	m, err := domain.ParseMoney("10.500")
	require.NoError(t, err)
	assert.Equal(t, "10.50", m.String())
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	// The classic float trap: 0.1 + 0.2 must be exactly 0.3.
	a, err := domain.ParseMoney("0.1")
	require.NoError(t, err)
	b, err := domain.ParseMoney("0.2")
	require.NoError(t, err)
	c, err := domain.ParseMoney("0.3")
	require.NoError(t, err)

	assert.True(t, a.Add(b).Equal(c))
	assert.True(t, c.Sub(b).Equal(a))
}

func TestMoneyComparisons(t *testing.T) {
	small := domain.MoneyFromInt(10)
	big := domain.MoneyFromInt(25)

	assert.True(t, small.LessThan(big))
	assert.False(t, big.LessThan(small))
	assert.True(t, big.GreaterThanOrEqual(small))
	assert.True(t, big.GreaterThanOrEqual(big))
	assert.Equal(t, -1, small.Cmp(big))
	assert.Equal(t, 0, small.Cmp(small))

	assert.True(t, small.Min(big).Equal(small))
	assert.True(t, big.Min(small).Equal(small))

	assert.True(t, domain.MoneyZero().IsZero())
	assert.False(t, domain.MoneyZero().IsPositive())
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m, err := domain.ParseMoney("42.50")
	require.NoError(t, err)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"42.50"`, string(b))

	var back domain.Money
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, m.Equal(back))
}
