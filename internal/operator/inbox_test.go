package operator

import (
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/inboxd/internal/models"
)

func TestGetOrCreateInbox(t *testing.T) {
	db := testDB(t)
	a, err := GetOrCreateInbox(db, "t1", "+15550001", "Support")
	if err != nil {
		t.Fatalf("GetOrCreateInbox: %v", err)
	}
	if !strings.HasPrefix(a.ID, "inbox-") {
		t.Errorf("ID = %q, want inbox- prefix", a.ID)
	}

	b, err := GetOrCreateInbox(db, "t1", "+15550001", "Other name")
	if err != nil {
		t.Fatalf("second GetOrCreateInbox: %v", err)
	}
	if b.ID != a.ID || b.DisplayName != "Support" {
		t.Errorf("second call = %+v, want existing %s", b, a.ID)
	}

	c, _ := GetOrCreateInbox(db, "t2", "+15550001", "")
	if c.ID == a.ID {
		t.Error("same phone in another tenant must be a different inbox")
	}
	if c.DisplayName != "+15550001" {
		t.Errorf("DisplayName = %q, want phone fallback", c.DisplayName)
	}
}

func TestGetOrCreateInbox_RequiresPhone(t *testing.T) {
	db := testDB(t)
	if _, err := GetOrCreateInbox(db, "t1", "", "x"); !errors.Is(err, models.ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}

func TestGetInbox_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := GetInbox(db, "inbox-none"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubscribe_Idempotent(t *testing.T) {
	db := testDB(t)
	op, _ := Create(db, "t1", models.RoleOperator)
	inbox, _ := GetOrCreateInbox(db, "t1", "+1", "")

	for i := 0; i < 3; i++ {
		if err := Subscribe(db, op.ID, inbox.ID); err != nil {
			t.Fatalf("Subscribe #%d: %v", i, err)
		}
	}

	var count int64
	db.Model(&models.OperatorInboxSubscription{}).Count(&count)
	if count != 1 {
		t.Errorf("subscriptions = %d, want 1", count)
	}
	ok, err := Subscribed(db, op.ID, inbox.ID)
	if err != nil || !ok {
		t.Errorf("Subscribed = %v, %v; want true", ok, err)
	}
}

func TestInboxes(t *testing.T) {
	db := testDB(t)
	op, _ := Create(db, "t1", models.RoleOperator)
	a, _ := GetOrCreateInbox(db, "t1", "+2", "")
	b, _ := GetOrCreateInbox(db, "t1", "+1", "")
	GetOrCreateInbox(db, "t1", "+3", "")

	Subscribe(db, op.ID, a.ID)
	Subscribe(db, op.ID, b.ID)

	got, err := Inboxes(db, op.ID)
	if err != nil {
		t.Fatalf("Inboxes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("order = %s,%s; want by phone", got[0].PhoneNumber, got[1].PhoneNumber)
	}

	none, _ := Inboxes(db, "op-other")
	if len(none) != 0 {
		t.Errorf("unsubscribed operator sees %d inboxes", len(none))
	}
}
