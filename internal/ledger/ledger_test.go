package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func newTestLedger(cash float64) *Ledger {
	port := domain.NewPortfolio(uuid.New(), decimal.NewFromFloat(cash), "default")
	return New(port, DefaultFeeModel())
}

func TestOpenPositionReservesMarginAndFee(t *testing.T) {
	l := newTestLedger(10000)
	now := time.Now()

	pos, err := l.OpenPosition("AAPL", domain.ProductStock, domain.SideLong,
		decimal.NewFromInt(10), decimal.NewFromFloat(100), decimal.NewFromInt(1),
		decimal.NewFromFloat(90), decimal.NewFromFloat(120), now)

	require.NoError(t, err)
	assert.True(t, pos.MarginUsed.Equal(decimal.NewFromInt(1000)))
	expectedCash := decimal.NewFromInt(10000).Sub(decimal.NewFromInt(1000)).Sub(DefaultFeeModel().Commission)
	assert.True(t, l.Portfolio().Cash.Equal(expectedCash))
}

func TestOpenPositionInsufficientCash(t *testing.T) {
	l := newTestLedger(500)
	_, err := l.OpenPosition("AAPL", domain.ProductStock, domain.SideLong,
		decimal.NewFromInt(10), decimal.NewFromFloat(100), decimal.NewFromInt(1),
		decimal.Zero, decimal.Zero, time.Now())
	require.ErrorIs(t, err, ErrInsufficientCash)
}

func TestClosePositionRealizesPnL(t *testing.T) {
	l := newTestLedger(10000)
	now := time.Now()
	pos, err := l.OpenPosition("AAPL", domain.ProductStock, domain.SideLong,
		decimal.NewFromInt(10), decimal.NewFromFloat(100), decimal.NewFromInt(1),
		decimal.Zero, decimal.Zero, now)
	require.NoError(t, err)

	closed, err := l.ClosePosition(pos.ID, decimal.NewFromFloat(110), domain.CloseUser, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, closed.RealizedPnl.GreaterThan(decimal.Zero))
	assert.NotNil(t, closed.ClosedAt)
}

func TestMarkToMarketTriggersStopLoss(t *testing.T) {
	l := newTestLedger(10000)
	now := time.Now()
	pos, err := l.OpenPosition("AAPL", domain.ProductStock, domain.SideLong,
		decimal.NewFromInt(10), decimal.NewFromFloat(100), decimal.NewFromInt(1),
		decimal.NewFromFloat(95), decimal.Zero, now)
	require.NoError(t, err)

	reason, shouldClose, err := l.MarkToMarket(pos.ID, decimal.NewFromFloat(94), now)
	require.NoError(t, err)
	assert.True(t, shouldClose)
	assert.Equal(t, domain.CloseStopLoss, reason)
}

func TestUnknownPositionErrors(t *testing.T) {
	l := newTestLedger(10000)
	_, err := l.ClosePosition(uuid.New(), decimal.Zero, domain.CloseUser, time.Now())
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestClosePositionKnockoutRealizesFullMarginLoss(t *testing.T) {
	l := newTestLedger(10000)
	now := time.Now()
	pos, err := l.OpenPosition("DAX40", domain.ProductKnockout, domain.SideLong,
		decimal.NewFromInt(10), decimal.NewFromFloat(100), decimal.NewFromInt(5),
		decimal.Zero, decimal.Zero, now)
	require.NoError(t, err)
	pos.KnockoutLevel = decimal.NewFromFloat(90)

	// Price gaps straight through the barrier; the payout is still
	// exactly -marginUsed, not whatever UnrealizedPnL would compute at
	// the overshot exit price.
	reason, shouldClose, err := l.MarkToMarket(pos.ID, decimal.NewFromFloat(80), now)
	require.NoError(t, err)
	require.True(t, shouldClose)
	require.Equal(t, domain.CloseKnockout, reason)

	marginUsed := pos.MarginUsed
	feesBefore := pos.CumulativeFees
	closed, err := l.ClosePosition(pos.ID, decimal.NewFromFloat(80), reason, now)
	require.NoError(t, err)
	exitFee := closed.CumulativeFees.Sub(feesBefore)
	assert.True(t, closed.RealizedPnl.Equal(marginUsed.Neg().Sub(exitFee)))
}

func TestApplyOvernightFeesDecaysWarrantPriceNotCash(t *testing.T) {
	l := newTestLedger(10000)
	now := time.Now()
	pos, err := l.OpenPosition("SIE-WARRANT", domain.ProductWarrant, domain.SideLong,
		decimal.NewFromInt(100), decimal.NewFromFloat(2), decimal.NewFromInt(1),
		decimal.Zero, decimal.Zero, now)
	require.NoError(t, err)

	cashBefore := l.Portfolio().Cash
	total := l.ApplyOvernightFees(now.AddDate(0, 0, 1))

	assert.True(t, total.IsZero(), "warrant decay is not a cash fee")
	assert.True(t, l.Portfolio().Cash.Equal(cashBefore))
	assert.True(t, pos.CurrentPrice.LessThan(decimal.NewFromFloat(2)))
}
