package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// --- モック ---

type mockMentorRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Mentor, error)
}

func (m *mockMentorRepo) Create(ctx context.Context, mentor *model.Mentor) error { return nil }
func (m *mockMentorRepo) FindByID(ctx context.Context, id string) (*model.Mentor, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockMentorRepo) FindByEmail(ctx context.Context, email string) (*model.Mentor, error) {
	return nil, nil
}
func (m *mockMentorRepo) List(ctx context.Context) ([]*model.Mentor, error) { return nil, nil }
func (m *mockMentorRepo) Update(ctx context.Context, id string, values map[string]any) (*model.Mentor, error) {
	return nil, nil
}

type mockMenteeRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Mentee, error)
}

func (m *mockMenteeRepo) Create(ctx context.Context, mentee *model.Mentee) error { return nil }
func (m *mockMenteeRepo) FindByID(ctx context.Context, id string) (*model.Mentee, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockMenteeRepo) FindByEmail(ctx context.Context, email string) (*model.Mentee, error) {
	return nil, nil
}
func (m *mockMenteeRepo) List(ctx context.Context) ([]*model.Mentee, error) { return nil, nil }
func (m *mockMenteeRepo) Update(ctx context.Context, id string, values map[string]any) (*model.Mentee, error) {
	return nil, nil
}

type mockConnectionRepo struct {
	createFn     func(ctx context.Context, conn *model.Connection) error
	findByPairFn func(ctx context.Context, mentorID, menteeID string) (*model.Connection, error)
	deleteFn     func(ctx context.Context, id string) (*model.Connection, error)
}

func (m *mockConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	return m.createFn(ctx, conn)
}
func (m *mockConnectionRepo) FindByPair(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
	return m.findByPairFn(ctx, mentorID, menteeID)
}
func (m *mockConnectionRepo) ListByMentor(ctx context.Context, mentorID string) ([]model.ConnectionWithMentee, error) {
	return []model.ConnectionWithMentee{}, nil
}
func (m *mockConnectionRepo) ListByMentee(ctx context.Context, menteeID string) ([]model.ConnectionWithMentor, error) {
	return []model.ConnectionWithMentor{}, nil
}
func (m *mockConnectionRepo) Delete(ctx context.Context, id string) (*model.Connection, error) {
	return m.deleteFn(ctx, id)
}

type recordingNotifier struct {
	kinds    []webhook.Kind
	payloads []any
}

func (n *recordingNotifier) Notify(ctx context.Context, kind webhook.Kind, payload any) {
	n.kinds = append(n.kinds, kind)
	n.payloads = append(n.payloads, payload)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func foundMentor(ctx context.Context, id string) (*model.Mentor, error) {
	return &model.Mentor{ID: id, Name: "Alice", Email: "alice@example.com"}, nil
}

func foundMentee(ctx context.Context, id string) (*model.Mentee, error) {
	return &model.Mentee{ID: id, Name: "Bob", Email: "bob@example.com"}, nil
}

func noPair(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
	return nil, nil
}

func newTestService(conns *mockConnectionRepo) (*Service, *recordingNotifier) {
	n := &recordingNotifier{}
	svc := NewService(
		&mockMentorRepo{findByIDFn: foundMentor},
		&mockMenteeRepo{findByIDFn: foundMentee},
		conns, n, discardLogger(),
	)
	return svc, n
}

func apiErrorOf(t *testing.T, err error) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	return apiErr
}

// --- テスト ---

func TestCreate_Success(t *testing.T) {
	svc, notifier := newTestService(&mockConnectionRepo{
		findByPairFn: noPair,
		createFn:     func(ctx context.Context, conn *model.Connection) error { return nil },
	})

	conn, err := svc.Create(context.Background(), "mentor-1", "mentee-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.ID == "" || conn.MentorID != "mentor-1" || conn.MenteeID != "mentee-1" {
		t.Errorf("connection = %+v", conn)
	}

	if len(notifier.kinds) != 1 || notifier.kinds[0] != webhook.KindNewConnection {
		t.Fatalf("notifications = %v, want [new-connection]", notifier.kinds)
	}
	payload := notifier.payloads[0].(Notification)
	if payload.Connection != conn || payload.Mentor.ID != "mentor-1" || payload.Mentee.ID != "mentee-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCreate_MissingIDs(t *testing.T) {
	svc, _ := newTestService(&mockConnectionRepo{})

	_, err := svc.Create(context.Background(), "", "mentee-1")

	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeValidation || apiErr.Message != model.MsgConnectionIDsRequired {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestCreate_MentorNotFound(t *testing.T) {
	svc := NewService(
		&mockMentorRepo{findByIDFn: func(ctx context.Context, id string) (*model.Mentor, error) { return nil, nil }},
		&mockMenteeRepo{findByIDFn: func(ctx context.Context, id string) (*model.Mentee, error) {
			t.Fatal("mentee lookup should not happen")
			return nil, nil
		}},
		&mockConnectionRepo{}, &recordingNotifier{}, discardLogger(),
	)

	_, err := svc.Create(context.Background(), "ghost", "mentee-1")

	if apiErr := apiErrorOf(t, err); apiErr.Message != model.MsgMentorNotFound {
		t.Errorf("Message = %q, want %q", apiErr.Message, model.MsgMentorNotFound)
	}
}

func TestCreate_MenteeNotFound(t *testing.T) {
	svc := NewService(
		&mockMentorRepo{findByIDFn: foundMentor},
		&mockMenteeRepo{findByIDFn: func(ctx context.Context, id string) (*model.Mentee, error) { return nil, nil }},
		&mockConnectionRepo{}, &recordingNotifier{}, discardLogger(),
	)

	_, err := svc.Create(context.Background(), "mentor-1", "ghost")

	if apiErr := apiErrorOf(t, err); apiErr.Message != model.MsgMenteeNotFound {
		t.Errorf("Message = %q, want %q", apiErr.Message, model.MsgMenteeNotFound)
	}
}

func TestCreate_ExistingPair(t *testing.T) {
	svc, notifier := newTestService(&mockConnectionRepo{
		findByPairFn: func(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
			return &model.Connection{ID: "conn-1", MentorID: mentorID, MenteeID: menteeID}, nil
		},
		createFn: func(ctx context.Context, conn *model.Connection) error {
			t.Fatal("Create should not be called")
			return nil
		},
	})

	_, err := svc.Create(context.Background(), "mentor-1", "mentee-1")

	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeConflict || apiErr.ConnectionID != "conn-1" {
		t.Errorf("error = %+v, want conflict with conn-1", apiErr)
	}
	if len(notifier.kinds) != 0 {
		t.Error("no notification should be sent on conflict")
	}
}

func TestCreate_UniqueViolationReturnsExistingID(t *testing.T) {
	lookups := 0
	svc, _ := newTestService(&mockConnectionRepo{
		findByPairFn: func(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return &model.Connection{ID: "conn-raced"}, nil
		},
		createFn: func(ctx context.Context, conn *model.Connection) error {
			return &repository.DuplicateKeyError{Constraint: repository.ConstraintConnectionPair}
		},
	})

	_, err := svc.Create(context.Background(), "mentor-1", "mentee-1")

	apiErr := apiErrorOf(t, err)
	if apiErr.Code != model.ErrCodeConflict || apiErr.ConnectionID != "conn-raced" {
		t.Errorf("error = %+v, want conflict with conn-raced", apiErr)
	}
}

func TestCreate_ForeignKeyViolationIsNotFound(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{repository.ConstraintConnectionMentorFK, model.MsgMentorNotFound},
		{repository.ConstraintConnectionMenteeFK, model.MsgMenteeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			svc, _ := newTestService(&mockConnectionRepo{
				findByPairFn: noPair,
				createFn: func(ctx context.Context, conn *model.Connection) error {
					return &repository.ForeignKeyError{Constraint: tt.constraint}
				},
			})

			_, err := svc.Create(context.Background(), "mentor-1", "mentee-1")

			apiErr := apiErrorOf(t, err)
			if apiErr.Code != model.ErrCodeNotFound || apiErr.Message != tt.want {
				t.Errorf("error = %+v, want not found %q", apiErr, tt.want)
			}
		})
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	svc, _ := newTestService(&mockConnectionRepo{
		findByPairFn: noPair,
		createFn:     func(ctx context.Context, conn *model.Connection) error { return dbErr },
	})

	_, err := svc.Create(context.Background(), "mentor-1", "mentee-1")

	if !errors.Is(err, dbErr) {
		t.Fatalf("error = %v, want wrapped storage error", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(&mockConnectionRepo{
		deleteFn: func(ctx context.Context, id string) (*model.Connection, error) {
			if id == "conn-1" {
				return &model.Connection{ID: id}, nil
			}
			return nil, nil
		},
	})

	conn, err := svc.Delete(context.Background(), "conn-1")
	if err != nil || conn.ID != "conn-1" {
		t.Fatalf("Delete = %v, %v", conn, err)
	}

	_, err = svc.Delete(context.Background(), "missing")
	if apiErr := apiErrorOf(t, err); apiErr.Message != model.MsgConnectionNotFound {
		t.Errorf("Message = %q, want %q", apiErr.Message, model.MsgConnectionNotFound)
	}
}
