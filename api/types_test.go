package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	txHash := common.HexToHash("0xabc").Hex()

	tests := []struct {
		name  string
		req   CreatePersonRequest
		valid bool
	}{
		{name: "amount payment", req: CreatePersonRequest{Name: "Sammy", Age: 70, Payment: PaymentRequest{Amount: "1ether"}}, valid: true},
		{name: "tx payment", req: CreatePersonRequest{Name: "Sammy", Payment: PaymentRequest{TxHash: txHash}}, valid: true},
		{name: "empty name", req: CreatePersonRequest{Payment: PaymentRequest{Amount: "1ether"}}, valid: true},
		{name: "no payment", req: CreatePersonRequest{Name: "Sammy"}},
		{name: "both payments", req: CreatePersonRequest{Payment: PaymentRequest{Amount: "1ether", TxHash: txHash}}},
		{name: "short tx hash", req: CreatePersonRequest{Payment: PaymentRequest{TxHash: "0xabc"}}},
		{name: "long name", req: CreatePersonRequest{Name: strings.Repeat("x", 257), Payment: PaymentRequest{Amount: "1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			}
		})
	}
}

func TestPaymentRequest_ToPayment(t *testing.T) {
	payment, err := PaymentRequest{Amount: "1ether"}.ToPayment()
	require.NoError(t, err)
	assert.Equal(t, 0, big.NewInt(params.Ether).Cmp(payment.Amount))
	assert.Equal(t, common.Hash{}, payment.TxHash)

	payment, err = PaymentRequest{TxHash: common.HexToHash("0x01").Hex()}.ToPayment()
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x01"), payment.TxHash)
	assert.Nil(t, payment.Amount)

	_, err = PaymentRequest{Amount: "a lot"}.ToPayment()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPersonResponse(t *testing.T) {
	id := common.HexToAddress("0x01")
	person := interfaces.Person{Name: "Sammy", Age: 70, Height: 170, IsSenior: true}

	resp := NewPersonResponse(id, person)
	assert.True(t, resp.Exists)
	assert.Equal(t, id.Hex(), resp.Identity)
	assert.Equal(t, person, resp.Person())

	assert.False(t, NewPersonResponse(id, interfaces.Person{}).Exists)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{interfaces.ErrInvalidAge, http.StatusBadRequest, "invalid_age"},
		{interfaces.ErrInsufficientPayment, http.StatusPaymentRequired, "insufficient_payment"},
		{interfaces.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{interfaces.ErrPaymentAlreadyClaimed, http.StatusConflict, "payment_already_claimed"},
		{interfaces.ErrPaymentPending, http.StatusTooEarly, "payment_pending"},
		{interfaces.ErrStateUnavailable, http.StatusServiceUnavailable, "state_unavailable"},
		{ErrReplayedRequest, http.StatusUnauthorized, "replayed_request"},
		{fmt.Errorf("wrapped: %w", interfaces.ErrInvalidAge), http.StatusBadRequest, "invalid_age"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, ErrorCodeInternal},
	}

	for _, tt := range tests {
		status, code := StatusForError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
		if tt.code != ErrorCodeInternal {
			assert.ErrorIs(t, tt.err, ErrorForCode(code))
		}
	}

	// A rejection whose refund failed reports the refund failure
	joined := fmt.Errorf("%w; refund: %w", interfaces.ErrInvalidAge, interfaces.ErrTransferFailed)
	_, code := StatusForError(joined)
	assert.Equal(t, "transfer_failed", code)

	assert.Nil(t, ErrorForCode("no_such_code"))
}
