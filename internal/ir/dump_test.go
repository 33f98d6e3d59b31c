package ir

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDump_Arithmetic(t *testing.T) {
	c := NewContext()
	i32 := c.Primitive(KindInt32)

	entry, err := c.NewFunction("entry", i32, true)
	require.NoError(t, err)
	b, err := c.NewBlock(entry, "entry")
	require.NoError(t, err)
	neg, err := c.Unary(OpNegate, i32, c.ConstInt32(2))
	require.NoError(t, err)
	sum, err := c.Binary(OpAdd, i32, c.ConstInt32(1), neg)
	require.NoError(t, err)
	require.NoError(t, c.Return(b, sum))

	helper, err := c.NewFunction("helper", i32, false)
	require.NoError(t, err)
	hb, err := c.NewBlock(helper, "body")
	require.NoError(t, err)
	mul, err := c.Binary(OpMultiply, i32, c.ConstInt32(6), c.ConstInt32(7))
	require.NoError(t, err)
	sub, err := c.Binary(OpSubtract, i32, c.ConstInt32(3), c.ConstInt32(1))
	require.NoError(t, err)
	div, err := c.Binary(OpDivide, i32, mul, sub)
	require.NoError(t, err)
	require.NoError(t, c.Return(hb, div))

	newGolden(t).Assert(t, "arithmetic", []byte(c.String()))
}

func TestDump_MoneyConstructor(t *testing.T) {
	c := NewContext()
	c.Primitive(KindBool)
	c.Primitive(KindInt32)
	f64 := c.Primitive(KindFloat64)
	str := c.Primitive(KindString)
	_, err := c.PointerTo(f64)
	require.NoError(t, err)

	amount, err := c.NewField("amount", f64)
	require.NoError(t, err)
	currency, err := c.NewField("currency", str)
	require.NoError(t, err)
	money, err := c.NewStruct("Money", []FieldID{amount, currency})
	require.NoError(t, err)
	moneyPtr, err := c.PointerTo(money)
	require.NoError(t, err)

	fn, err := c.NewFunction("entry", moneyPtr, true)
	require.NoError(t, err)
	local, err := c.NewLocal(fn, money, "money")
	require.NoError(t, err)
	b, err := c.NewBlock(fn, "entry")
	require.NoError(t, err)

	amountLV, err := c.AccessField(local, amount)
	require.NoError(t, err)
	require.NoError(t, c.Assign(b, amountLV, c.ConstFloat64(20)))
	currencyLV, err := c.AccessField(local, currency)
	require.NoError(t, err)
	require.NoError(t, c.Assign(b, currencyLV, c.ConstString("USD")))

	addr, err := c.AddressOf(local)
	require.NoError(t, err)
	require.NoError(t, c.Return(b, addr))
	require.NoError(t, c.Validate())

	newGolden(t).Assert(t, "money_constructor", []byte(c.String()))
}
