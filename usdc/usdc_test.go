package usdc

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.000000"},
		{300000, "0.300000"},
		{1500000, "1.500000"},
		{50024750, "50.024750"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if got := FormatPrice8(500000000); got != "5.00000000" {
		t.Errorf("FormatPrice8 = %s", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr error
	}{
		{"1.5", 1500000, nil},
		{"0.30", 300000, nil},
		{"50.02475", 50024750, nil},
		{"12", 12000000, nil},
		{"0.0000001", 0, inter.ErrInvalidAmount},
		{"-1", 0, inter.ErrInvalidAmount},
		{"abc", 0, inter.ErrInvalidAmount},
		{"100000000000000000000", 0, inter.ErrArithmeticOverflow},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) err = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}

	p, err := ParsePrice8("5.01")
	require.NoError(t, err)
	require.Equal(t, uint64(501000000), p)
}

func TestLedger_collect(t *testing.T) {
	require := require.New(t)
	l := NewLedger(store.NewMemory[common.Address, Account](), logrus.New())
	user := common.HexToAddress("0xa1")

	require.NoError(l.Mint(user, 10_000000))
	err := l.Collect(user, 1_000000)
	require.True(errors.Is(err, inter.ErrInsufficientAllowance))

	l.Approve(user, 2_000000)
	require.NoError(l.Collect(user, 1_500000))
	require.Equal(uint64(8_500000), l.Balance(user))
	require.Equal(uint64(500000), l.Allowance(user))
	require.Equal(uint64(1_500000), l.Treasury())

	l.Approve(user, 100_000000)
	err = l.Collect(user, 9_000000)
	require.True(errors.Is(err, inter.ErrInsufficientBalance))
	require.Equal(uint64(8_500000), l.Balance(user), "failed collection must not debit")

	require.NoError(l.Collect(user, 0))
}

func TestLedger_disburse(t *testing.T) {
	require := require.New(t)
	l := NewLedger(store.NewMemory[common.Address, Account](), nil)
	user := common.HexToAddress("0xa2")

	err := l.Disburse(user, 4_000000)
	require.True(errors.Is(err, inter.ErrInsufficientBalance), "got %v", err)
	require.Zero(l.Balance(user), "a rejected payout must not credit")

	require.NoError(l.FundTreasury(5_000000))
	require.NoError(l.Disburse(user, 4_000000))
	require.Equal(uint64(4_000000), l.Balance(user))
	require.Equal(uint64(1_000000), l.Treasury())

	err = l.Disburse(user, 1_000001)
	require.True(errors.Is(err, inter.ErrInsufficientBalance), "got %v", err)
	require.Equal(uint64(1_000000), l.Treasury())
	require.NoError(l.Disburse(user, 0))
}
