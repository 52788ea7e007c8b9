package operator

import (
	"errors"
	"strings"
	"testing"
	"time"

	inboxdb "github.com/zulandar/inboxd/internal/db"
	"github.com/zulandar/inboxd/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := inboxdb.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := inboxdb.AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func TestCreate_StartsOffline(t *testing.T) {
	db := testDB(t)
	op, err := Create(db, "t1", models.RoleManager)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(op.ID, "op-") {
		t.Errorf("ID = %q, want op- prefix", op.ID)
	}
	if op.Role != models.RoleManager || op.TenantID != "t1" {
		t.Errorf("operator = %+v", op)
	}

	st, err := Status(db, op.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != models.Offline {
		t.Errorf("Status = %s, want OFFLINE", st.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	if _, err := Create(db, " ", models.RoleOperator); !errors.Is(err, models.ErrInvalidID) {
		t.Errorf("blank tenant err = %v, want ErrInvalidID", err)
	}
	if _, err := Create(db, "t1", models.OperatorRole("JANITOR")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := Get(db, "op-none"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAvailability_UnknownWithoutRecord(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Operator{ID: "op-bare", TenantID: "t1", Role: models.RoleOperator})

	a, err := Availability(db, "op-bare")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if a != models.AvailabilityUnknown {
		t.Errorf("Availability = %s, want UNKNOWN", a)
	}
}

func TestSetStatus_UpdatesAndCreates(t *testing.T) {
	db := testDB(t)
	op, _ := Create(db, "t1", models.RoleOperator)

	later := time.Now().Add(time.Minute)
	if err := SetStatus(db, op.ID, models.Available, later); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	a, _ := Availability(db, op.ID)
	if a != models.Available {
		t.Errorf("Availability = %s, want AVAILABLE", a)
	}

	var count int64
	db.Model(&models.OperatorStatus{}).Where("operator_id = ?", op.ID).Count(&count)
	if count != 1 {
		t.Errorf("status rows = %d, want 1", count)
	}

	if err := SetStatus(db, "op-new", models.Offline, later); err != nil {
		t.Fatalf("SetStatus on missing record: %v", err)
	}
	if a, _ := Availability(db, "op-new"); a != models.Offline {
		t.Errorf("Availability = %s, want OFFLINE", a)
	}
}

func TestSetStatus_RejectsUnknown(t *testing.T) {
	db := testDB(t)
	if err := SetStatus(db, "op-1", models.AvailabilityUnknown, time.Now()); err == nil {
		t.Fatal("expected error storing UNKNOWN")
	}
}
