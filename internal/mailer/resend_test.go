package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResendSend(t *testing.T) {
	var gotAuth string
	var gotReq resendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(resendResponse{ID: "msg-123"})
	}))
	defer srv.Close()

	r := NewResend(srv.URL, "test-key", time.Second)
	res, err := r.Send(context.Background(), &Message{
		From:     "jess@acme.com",
		FromName: "Jess",
		To:       "alicia@example.com",
		Subject:  "Hi Alicia",
		Text:     "hello",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if !res.OK || res.ID != "msg-123" || res.Provider != "resend" {
		t.Errorf("unexpected result: %+v", res)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.From != "Jess <jess@acme.com>" {
		t.Errorf("From = %q", gotReq.From)
	}
	if len(gotReq.To) != 1 || gotReq.To[0] != "alicia@example.com" {
		t.Errorf("To = %v", gotReq.To)
	}
}

func TestResendSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(resendError{Name: "validation_error", Message: "invalid to"})
	}))
	defer srv.Close()

	r := NewResend(srv.URL, "test-key", time.Second)
	res, err := r.Send(context.Background(), &Message{From: "a@b.c", To: "bad", Subject: "x"})
	if err != nil {
		t.Fatalf("API rejection must not be an error, got %v", err)
	}
	if res.OK || res.Status != "failed" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Message != "validation_error: invalid to" {
		t.Errorf("Message = %q, want the API rejection reason", res.Message)
	}
}

func TestResendSendAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResend(srv.URL, "test-key", time.Second)
	res, err := r.Send(context.Background(), &Message{From: "a@b.c", To: "x@y.z", Subject: "x"})
	if err != nil {
		t.Fatalf("API rejection must not be an error, got %v", err)
	}
	if res.OK || res.Message == "" {
		t.Errorf("want a fallback reason on an empty error body, got %+v", res)
	}
}

func TestResendSendNetworkFailure(t *testing.T) {
	// Point at a closed server so the request fails outright
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := NewResend(srv.URL, "test-key", time.Second)
	res, err := r.Send(context.Background(), &Message{From: "a@b.c", To: "x@y.z", Subject: "x"})
	if err != nil {
		t.Fatalf("network failure must not be an error, got %v", err)
	}
	if res.OK || res.Status != "failed" {
		t.Errorf("unexpected result: %+v", res)
	}
}
