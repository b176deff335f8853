package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

func TestContact_Submit(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	s := NewContactService(testRenderer(), q, zaptest.NewLogger(t))

	err := s.Submit(context.Background(), ContactInput{Name: "Ann", Email: " Ann@X.com ", Message: "Do you ship to Canada?"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(q.msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(q.msgs))
	}
	biz, reply := q.msgs[0], q.msgs[1]
	if biz.Kind != model.EmailContactBusiness || biz.To != "owner@shop.test" || biz.ReplyTo != "ann@x.com" {
		t.Fatalf("business copy %+v", biz)
	}
	if reply.Kind != model.EmailContactAutoReply || reply.To != "ann@x.com" {
		t.Fatalf("auto reply %+v", reply)
	}
}

func TestContact_Submit_Errors(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	s := NewContactService(testRenderer(), q, zaptest.NewLogger(t))

	err := s.Submit(context.Background(), ContactInput{Name: "A", Email: "nope", Message: "short"})
	ve, ok := errs.AsValidation(err)
	if !ok || len(ve.Fields) != 3 {
		t.Fatalf("want 3 field errors, got %v", err)
	}

	q.err = errors.New("outbox down")
	err = s.Submit(context.Background(), ContactInput{Name: "Ann", Email: "ann@x.com", Message: "Hello there, friends"})
	if err == nil || errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want internal error, got %v", err)
	}
}
