package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"topup-service/internal/provider/gateway"
)

func TestInitiate(t *testing.T) {
	t.Run("sends request and decodes redirect response", func(t *testing.T) {
		var gotAuth string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/payments", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{
				"transactionNumber": "TXN-123",
				"payment_url":       "https://pay.example.com/TXN-123",
			})
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "secret-token", srv.Client())
		txn, err := c.Initiate(context.Background(), gateway.InitiateParams{
			Amount:      10250,
			ServiceCode: "WAVE_SN_CASHIN",
			PhoneNumber: "0771234567",
		})
		require.NoError(t, err)
		require.Equal(t, "TXN-123", txn.TransactionNumber)
		require.Equal(t, "https://pay.example.com/TXN-123", txn.PaymentURL)

		require.Equal(t, "Bearer secret-token", gotAuth)
		require.Equal(t, float64(10250), gotBody["amount"])
		require.Equal(t, "WAVE_SN_CASHIN", gotBody["serviceCode"])
		require.Equal(t, "0771234567", gotBody["phoneNumber"])
		_, hasOTP := gotBody["otp"]
		require.False(t, hasOTP, "empty otp must be omitted")
	})

	t.Run("includes otp when provided", func(t *testing.T) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{"transactionNumber": "TXN-9"})
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		txn, err := c.Initiate(context.Background(), gateway.InitiateParams{
			Amount:      500,
			ServiceCode: "OM_SN_CASHIN",
			PhoneNumber: "0771234567",
			OneTimeCode: "482913",
		})
		require.NoError(t, err)
		require.Equal(t, "TXN-9", txn.TransactionNumber)
		require.Empty(t, txn.PaymentURL)
		require.Equal(t, "482913", gotBody["otp"])
	})

	t.Run("maps insufficient funds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]string{
				"code":    "INSUFFICIENT_FUNDS",
				"message": "balance too low",
			})
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		_, err := c.Initiate(context.Background(), gateway.InitiateParams{Amount: 100})
		require.ErrorIs(t, err, gateway.ErrInsufficientFunds)
	})

	t.Run("maps other client errors to rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"code":    "INVALID_MSISDN",
				"message": "number not registered",
			})
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		_, err := c.Initiate(context.Background(), gateway.InitiateParams{Amount: 100})
		var rejected *gateway.RejectedError
		require.ErrorAs(t, err, &rejected)
		require.Equal(t, "INVALID_MSISDN", rejected.Code)
		require.Contains(t, rejected.Error(), "number not registered")
	})

	t.Run("server errors are plain errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		_, err := c.Initiate(context.Background(), gateway.InitiateParams{Amount: 100})
		require.Error(t, err)
		require.NotErrorIs(t, err, gateway.ErrInsufficientFunds)
	})
}

func TestCheckStatus(t *testing.T) {
	t.Run("normalizes vocabulary", func(t *testing.T) {
		cases := map[string]gateway.Status{
			"PENDING":    gateway.StatusPending,
			"processing": gateway.StatusPending,
			"SUCCEEDED":  gateway.StatusSucceeded,
			"success":    gateway.StatusSucceeded,
			"SUCCESSFUL": gateway.StatusSucceeded,
			"COMPLETED":  gateway.StatusSucceeded,
			"PAID":       gateway.StatusSucceeded,
			"FAILED":     gateway.StatusFailed,
			"DECLINED":   gateway.StatusFailed,
			"EXPIRED":    gateway.StatusFailed,
		}
		for raw, want := range cases {
			status := raw
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/payments/TXN-1/status", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]string{"status": status})
			}))
			c := gateway.NewClient(srv.URL, "tok", srv.Client())
			got, err := c.CheckStatus(context.Background(), "TXN-1")
			srv.Close()
			require.NoError(t, err)
			require.Equal(t, want, got, "raw status %q", raw)
		}
	})

	t.Run("server error is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		_, err := c.CheckStatus(context.Background(), "TXN-1")
		require.Error(t, err)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("posts credit amount", func(t *testing.T) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/payments/TXN-7/confirm", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		require.NoError(t, c.Confirm(context.Background(), "TXN-7", 9750))
		require.Equal(t, float64(9750), gotBody["amount"])
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := gateway.NewClient(srv.URL, "tok", srv.Client())
		require.Error(t, c.Confirm(context.Background(), "TXN-7", 9750))
	})
}

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, gateway.StatusSucceeded, gateway.NormalizeStatus(" paid "))
	require.Equal(t, gateway.StatusFailed, gateway.NormalizeStatus("rejected"))
	require.Equal(t, gateway.StatusPending, gateway.NormalizeStatus(""))
	require.Equal(t, gateway.StatusPending, gateway.NormalizeStatus("SOMETHING_NEW"))
}
