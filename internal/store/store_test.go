// store_test.go - Tests for the sqlite-backed record stores
package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/models"
)

// createTestStore opens a throwaway sqlite database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	return New(db)
}

func createTestUser(t *testing.T, s *Store, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		Name:         "etc user",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	if err := s.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Page
		wantNumber int
		wantSize   int
	}{
		{"defaults", Page{}, 1, 50},
		{"negative page", Page{Number: -3, Size: 10}, 1, 10},
		{"size capped", Page{Number: 2, Size: 10000}, 2, 200},
		{"passthrough", Page{Number: 4, Size: 25}, 4, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.Number != tt.wantNumber || got.Size != tt.wantSize {
				t.Errorf("Normalize() = %+v, want number=%d size=%d", got, tt.wantNumber, tt.wantSize)
			}
		})
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "op@example.com", models.RoleOperator)
		if u.ID == "" {
			t.Error("Expected ID to be assigned on create")
		}
		got, err := s.Users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Email != "op@example.com" {
			t.Errorf("Expected email op@example.com, got %s", got.Email)
		}
	})

	t.Run("duplicate email returns ErrDuplicate", func(t *testing.T) {
		s := createTestStore(t)
		createTestUser(t, s, "dup@example.com", models.RoleOperator)
		err := s.Users.Create(ctx, &models.User{
			Email: "dup@example.com", Name: "again", PasswordHash: "x", Role: models.RoleOperator,
		})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("soft delete hides from lookup", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "gone@example.com", models.RoleSupervisor)
		if err := s.Users.SoftDelete(ctx, u.ID, time.Now()); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
		if _, err := s.Users.GetByEmail(ctx, "gone@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after soft delete, got %v", err)
		}
		if _, err := s.Users.GetByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound by id after soft delete, got %v", err)
		}
		// GetAny still sees the row, for admin restore flows.
		if _, err := s.Users.GetAny(ctx, u.ID); err != nil {
			t.Errorf("GetAny should find soft-deleted user, got %v", err)
		}
		if err := s.Users.Restore(ctx, u.ID); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if _, err := s.Users.GetByEmail(ctx, "gone@example.com"); err != nil {
			t.Errorf("Expected user back after restore, got %v", err)
		}
	})

	t.Run("list filters by role and search", func(t *testing.T) {
		s := createTestStore(t)
		createTestUser(t, s, "a@example.com", models.RoleOperator)
		createTestUser(t, s, "b@example.com", models.RoleSupervisor)
		createTestUser(t, s, "c@example.com", models.RoleSupervisor)

		users, total, err := s.Users.List(ctx, UserFilter{Role: models.RoleSupervisor}, Page{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 2 || len(users) != 2 {
			t.Errorf("Expected 2 supervisors, got total=%d len=%d", total, len(users))
		}

		users, total, err = s.Users.List(ctx, UserFilter{Search: "a@example"}, Page{})
		if err != nil {
			t.Fatalf("List with search failed: %v", err)
		}
		if total != 1 || users[0].Email != "a@example.com" {
			t.Errorf("Search did not match expected user, total=%d", total)
		}
	})

	t.Run("pagination caps and offsets", func(t *testing.T) {
		s := createTestStore(t)
		for i := 0; i < 5; i++ {
			createTestUser(t, s, string(rune('a'+i))+"@page.test", models.RoleOperator)
		}
		users, total, err := s.Users.List(ctx, UserFilter{}, Page{Number: 2, Size: 2})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 5 {
			t.Errorf("Expected total 5, got %d", total)
		}
		if len(users) != 2 {
			t.Errorf("Expected 2 users on page 2, got %d", len(users))
		}
	})
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked jti is detected", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "t@example.com", models.RoleOperator)
		exp := time.Now().Add(time.Hour)
		if err := s.Tokens.Revoke(ctx, &models.RevokedToken{JTI: "jti-1", UserID: u.ID, ExpiresAt: exp}); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		revoked, err := s.Tokens.IsRevoked(ctx, "jti-1", u.ID, time.Now())
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if !revoked {
			t.Error("Expected jti-1 to be revoked")
		}
		revoked, err = s.Tokens.IsRevoked(ctx, "jti-2", u.ID, time.Now())
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if revoked {
			t.Error("Expected jti-2 to not be revoked")
		}
	})

	t.Run("revoke twice is a no-op", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "t2@example.com", models.RoleOperator)
		exp := time.Now().Add(time.Hour)
		if err := s.Tokens.Revoke(ctx, &models.RevokedToken{JTI: "jti-x", UserID: u.ID, ExpiresAt: exp}); err != nil {
			t.Fatalf("first Revoke failed: %v", err)
		}
		if err := s.Tokens.Revoke(ctx, &models.RevokedToken{JTI: "jti-x", UserID: u.ID, ExpiresAt: exp}); err != nil {
			t.Errorf("second Revoke should be a no-op, got %v", err)
		}
	})

	t.Run("revoke all invalidates earlier tokens only", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "t3@example.com", models.RoleOperator)
		if err := s.Tokens.RevokeAllForUser(ctx, u.ID, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("RevokeAllForUser failed: %v", err)
		}
		before, err := s.Tokens.IsRevoked(ctx, "any-jti", u.ID, time.Now().Add(-time.Minute))
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if !before {
			t.Error("Token issued before revoke-all should be rejected")
		}
		after, err := s.Tokens.IsRevoked(ctx, "other-jti", u.ID, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if after {
			t.Error("Token issued after revoke-all should pass")
		}
	})

	t.Run("reset token consumed exactly once", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "t4@example.com", models.RoleOperator)
		tok := &models.PasswordResetToken{
			UserID:    u.ID,
			TokenHash: "hash-1",
			ExpiresAt: time.Now().Add(15 * time.Minute),
		}
		if err := s.Tokens.CreateResetToken(ctx, tok); err != nil {
			t.Fatalf("CreateResetToken failed: %v", err)
		}
		if err := s.Tokens.ConsumeResetToken(ctx, tok.ID, time.Now()); err != nil {
			t.Fatalf("first consume failed: %v", err)
		}
		if err := s.Tokens.ConsumeResetToken(ctx, tok.ID, time.Now()); !errors.Is(err, ErrNotFound) {
			t.Errorf("second consume should fail with ErrNotFound, got %v", err)
		}
	})

	t.Run("prune removes expired rows", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "t5@example.com", models.RoleOperator)
		if err := s.Tokens.Revoke(ctx, &models.RevokedToken{JTI: "old", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		if err := s.Tokens.Revoke(ctx, &models.RevokedToken{JTI: "fresh", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		n, err := s.Tokens.PruneExpired(ctx, time.Now())
		if err != nil {
			t.Fatalf("PruneExpired failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 pruned row, got %d", n)
		}
	})
}

func TestEquipmentStore(t *testing.T) {
	ctx := context.Background()

	floatPtr := func(v float64) *float64 { return &v }

	t.Run("chiller create and filtered list", func(t *testing.T) {
		s := createTestStore(t)
		u := createTestUser(t, s, "op@eq.test", models.RoleOperator)
		log := &models.ChillerLog{
			EquipmentID:            "CH-01",
			SiteID:                 "plant-a",
			ChillerSupplyTemp:      6.5,
			ChillerReturnTemp:      11.2,
			CoolingTowerSupplyTemp: 28.0,
			CoolingTowerReturnTemp: 32.5,
			CTDifferentialTemp:     4.5,
			ChillerWaterInletPressure: 2.1,
			ChillerMakeupWaterFlow:    floatPtr(120),
		}
		log.OperatorID = &u.ID
		log.OperatorName = u.Name
		log.Status = models.StatusPending
		if err := s.Equipment.CreateChiller(ctx, log); err != nil {
			t.Fatalf("CreateChiller failed: %v", err)
		}
		if log.ID == "" {
			t.Error("Expected chiller log ID to be assigned")
		}

		logs, total, err := s.Equipment.ListChillers(ctx, LogFilter{EquipmentID: "CH-01", Status: models.StatusPending}, Page{})
		if err != nil {
			t.Fatalf("ListChillers failed: %v", err)
		}
		if total != 1 || len(logs) != 1 {
			t.Fatalf("Expected one pending CH-01 log, got total=%d", total)
		}
		if logs[0].ChillerSupplyTemp != 6.5 {
			t.Errorf("Expected supply temp 6.5, got %v", logs[0].ChillerSupplyTemp)
		}

		logs, total, err = s.Equipment.ListChillers(ctx, LogFilter{Status: models.StatusApproved}, Page{})
		if err != nil {
			t.Fatalf("ListChillers failed: %v", err)
		}
		if total != 0 || len(logs) != 0 {
			t.Errorf("Expected no approved logs, got total=%d", total)
		}
	})

	t.Run("approve workflow round trip", func(t *testing.T) {
		s := createTestStore(t)
		op := createTestUser(t, s, "op2@eq.test", models.RoleOperator)
		sup := createTestUser(t, s, "sup@eq.test", models.RoleSupervisor)

		log := &models.BoilerLog{EquipmentID: "BL-01", SiteID: "plant-a", FeedWaterTemp: 85}
		log.OperatorID = &op.ID
		log.Status = models.StatusPending
		if err := s.Equipment.CreateBoiler(ctx, log); err != nil {
			t.Fatalf("CreateBoiler failed: %v", err)
		}

		log.Approve(sup.ID, true, "looks good", time.Now())
		if err := s.Equipment.UpdateBoiler(ctx, log); err != nil {
			t.Fatalf("UpdateBoiler failed: %v", err)
		}

		got, err := s.Equipment.GetBoiler(ctx, log.ID)
		if err != nil {
			t.Fatalf("GetBoiler failed: %v", err)
		}
		if got.Status != models.StatusApproved {
			t.Errorf("Expected approved status, got %s", got.Status)
		}
		if got.ApprovedByID == nil || *got.ApprovedByID != sup.ID {
			t.Error("Expected approver id to be persisted")
		}
		if got.Remarks != "looks good" {
			t.Errorf("Expected remarks to round trip, got %q", got.Remarks)
		}
	})

	t.Run("utility list filters by equipment type", func(t *testing.T) {
		s := createTestStore(t)
		a := &models.UtilityLog{EquipmentID: "U-1", EquipmentType: models.EquipmentChiller, SiteID: "x"}
		b := &models.UtilityLog{EquipmentID: "U-2", EquipmentType: models.EquipmentBoiler, SiteID: "x"}
		if err := s.Equipment.CreateUtility(ctx, a); err != nil {
			t.Fatalf("CreateUtility failed: %v", err)
		}
		if err := s.Equipment.CreateUtility(ctx, b); err != nil {
			t.Fatalf("CreateUtility failed: %v", err)
		}
		logs, total, err := s.Equipment.ListUtilities(ctx, LogFilter{EquipmentType: models.EquipmentBoiler}, Page{})
		if err != nil {
			t.Fatalf("ListUtilities failed: %v", err)
		}
		if total != 1 || logs[0].EquipmentID != "U-2" {
			t.Errorf("Expected the boiler utility row, got total=%d", total)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		s := createTestStore(t)
		log := &models.CompressorLog{EquipmentID: "CP-01", SiteID: "x"}
		if err := s.Equipment.CreateCompressor(ctx, log); err != nil {
			t.Fatalf("CreateCompressor failed: %v", err)
		}
		if err := s.Equipment.DeleteCompressor(ctx, log.ID); err != nil {
			t.Fatalf("DeleteCompressor failed: %v", err)
		}
		if _, err := s.Equipment.GetCompressor(ctx, log.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Equipment.DeleteCompressor(ctx, log.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestLogbookStore(t *testing.T) {
	ctx := context.Background()

	newSchema := func(name string) *models.LogbookSchema {
		return &models.LogbookSchema{
			Name:     name,
			Category: models.CategoryUtility,
			Fields: models.JSONList{
				map[string]interface{}{"name": "reading", "label": "Reading", "type": "number", "required": true},
			},
		}
	}

	t.Run("schema create with role assignments", func(t *testing.T) {
		s := createTestStore(t)
		schema := newSchema("Chiller Round")
		if err := s.Logbooks.CreateSchema(ctx, schema); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		if _, err := s.Logbooks.AssignRoles(ctx, schema.ID, []models.Role{models.RoleOperator, models.RoleSupervisor}, "", time.Now()); err != nil {
			t.Fatalf("AssignRoles failed: %v", err)
		}

		got, err := s.Logbooks.GetSchema(ctx, schema.ID)
		if err != nil {
			t.Fatalf("GetSchema failed: %v", err)
		}
		if len(got.RoleAssignments) != 2 {
			t.Fatalf("Expected 2 role assignments, got %d", len(got.RoleAssignments))
		}
	})

	t.Run("assign roles replaces the set", func(t *testing.T) {
		s := createTestStore(t)
		schema := newSchema("Boiler Round")
		if err := s.Logbooks.CreateSchema(ctx, schema); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		if _, err := s.Logbooks.AssignRoles(ctx, schema.ID, []models.Role{models.RoleOperator}, "", time.Now()); err != nil {
			t.Fatalf("AssignRoles failed: %v", err)
		}
		assignments, err := s.Logbooks.AssignRoles(ctx, schema.ID, []models.Role{models.RoleSupervisor}, "", time.Now())
		if err != nil {
			t.Fatalf("second AssignRoles failed: %v", err)
		}
		if len(assignments) != 1 || assignments[0].Role != models.RoleSupervisor {
			t.Errorf("Expected replacement set [supervisor], got %+v", assignments)
		}
	})

	t.Run("visible-to-role filter", func(t *testing.T) {
		s := createTestStore(t)
		visible := newSchema("Visible")
		hidden := newSchema("Hidden")
		if err := s.Logbooks.CreateSchema(ctx, visible); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		if err := s.Logbooks.CreateSchema(ctx, hidden); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		if _, err := s.Logbooks.AssignRoles(ctx, visible.ID, []models.Role{models.RoleOperator}, "", time.Now()); err != nil {
			t.Fatalf("AssignRoles failed: %v", err)
		}
		if _, err := s.Logbooks.AssignRoles(ctx, hidden.ID, []models.Role{models.RoleSupervisor}, "", time.Now()); err != nil {
			t.Fatalf("AssignRoles failed: %v", err)
		}

		schemas, total, err := s.Logbooks.ListSchemas(ctx, SchemaFilter{VisibleToRole: models.RoleOperator}, Page{})
		if err != nil {
			t.Fatalf("ListSchemas failed: %v", err)
		}
		if total != 1 || schemas[0].Name != "Visible" {
			t.Errorf("Expected only the operator-visible schema, got total=%d", total)
		}
	})

	t.Run("delete schema removes entries and assignments", func(t *testing.T) {
		s := createTestStore(t)
		schema := newSchema("Doomed")
		if err := s.Logbooks.CreateSchema(ctx, schema); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		entry := &models.LogbookEntry{
			SchemaID: schema.ID,
			Data:     models.JSONMap{"reading": 42.0},
		}
		if err := s.Logbooks.CreateEntry(ctx, entry); err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		if err := s.Logbooks.DeleteSchema(ctx, schema.ID); err != nil {
			t.Fatalf("DeleteSchema failed: %v", err)
		}
		if _, err := s.Logbooks.GetEntry(ctx, entry.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected entries to be removed with schema, got %v", err)
		}
	})
}

func TestCertificateStore(t *testing.T) {
	ctx := context.Background()

	newAirVelocity := func(no string) *models.AirVelocityTest {
		t := &models.AirVelocityTest{}
		t.CertificateNo = no
		t.ClientName = "Acme Pharma"
		t.Date = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		t.AHUNumber = "AHU-04"
		t.Rooms = []models.AirVelocityRoom{
			{
				RoomName: "Filling Room",
				Filters: []models.AirVelocityFilter{
					{FilterID: "F-1", FilterArea: 0.332, Reading1: 0.45, Reading2: 0.46, Reading3: 0.44, AvgVelocity: 0.45, AirFlowCFM: 316.5},
				},
			},
		}
		return t
	}

	t.Run("nested create and preloaded get", func(t *testing.T) {
		s := createTestStore(t)
		av := newAirVelocity("AV-2025-001")
		if err := s.Certificates.CreateAirVelocity(ctx, av); err != nil {
			t.Fatalf("CreateAirVelocity failed: %v", err)
		}
		got, err := s.Certificates.GetAirVelocity(ctx, av.ID)
		if err != nil {
			t.Fatalf("GetAirVelocity failed: %v", err)
		}
		if len(got.Rooms) != 1 || len(got.Rooms[0].Filters) != 1 {
			t.Fatalf("Expected nested rooms and filters, got %+v", got.Rooms)
		}
		if got.Rooms[0].Filters[0].FilterID != "F-1" {
			t.Errorf("Expected filter F-1, got %s", got.Rooms[0].Filters[0].FilterID)
		}
	})

	t.Run("duplicate certificate number rejected", func(t *testing.T) {
		s := createTestStore(t)
		if err := s.Certificates.CreateAirVelocity(ctx, newAirVelocity("AV-DUP")); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		err := s.Certificates.CreateAirVelocity(ctx, newAirVelocity("AV-DUP"))
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update replaces room tree", func(t *testing.T) {
		s := createTestStore(t)
		av := newAirVelocity("AV-REPL")
		if err := s.Certificates.CreateAirVelocity(ctx, av); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		av.Rooms = []models.AirVelocityRoom{
			{RoomName: "Corridor"},
			{RoomName: "Airlock"},
		}
		if err := s.Certificates.UpdateAirVelocity(ctx, av); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, err := s.Certificates.GetAirVelocity(ctx, av.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(got.Rooms) != 2 {
			t.Errorf("Expected 2 rooms after replacement, got %d", len(got.Rooms))
		}
	})

	t.Run("delete cascades children", func(t *testing.T) {
		s := createTestStore(t)
		av := newAirVelocity("AV-DEL")
		if err := s.Certificates.CreateAirVelocity(ctx, av); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Certificates.DeleteAirVelocity(ctx, av.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		var rooms int64
		if err := s.DB.Model(&models.AirVelocityRoom{}).Count(&rooms).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if rooms != 0 {
			t.Errorf("Expected room rows to cascade away, got %d", rooms)
		}
	})

	t.Run("nvpc points survive round trip", func(t *testing.T) {
		s := createTestStore(t)
		iso := 7
		nv := &models.NVPCTest{}
		nv.CertificateNo = "NVPC-001"
		nv.Date = time.Now()
		nv.Rooms = []models.NVPCRoom{
			{
				RoomName: "Dispensing",
				ISOClass: &iso,
				SamplingPoints: []models.NVPCSamplingPoint{
					{PointID: "P1", Readings05: models.FloatList{100, 110}, Readings5: models.FloatList{5, 6}},
				},
			},
		}
		if err := s.Certificates.CreateNVPC(ctx, nv); err != nil {
			t.Fatalf("CreateNVPC failed: %v", err)
		}
		got, err := s.Certificates.GetNVPC(ctx, nv.ID)
		if err != nil {
			t.Fatalf("GetNVPC failed: %v", err)
		}
		pts := got.Rooms[0].SamplingPoints
		if len(pts) != 1 || len(pts[0].Readings05) != 2 {
			t.Fatalf("Expected sampling point readings to persist, got %+v", pts)
		}
	})

	t.Run("list filters by status and date", func(t *testing.T) {
		s := createTestStore(t)
		older := newAirVelocity("AV-OLD")
		older.Date = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := newAirVelocity("AV-NEW")
		newer.Status = models.StatusApproved
		if err := s.Certificates.CreateAirVelocity(ctx, older); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Certificates.CreateAirVelocity(ctx, newer); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		tests, total, err := s.Certificates.ListAirVelocity(ctx, CertFilter{From: &from}, Page{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 1 || tests[0].CertificateNo != "AV-NEW" {
			t.Errorf("Expected AV-NEW only, got total=%d", total)
		}

		_, total, err = s.Certificates.ListAirVelocity(ctx, CertFilter{Status: models.StatusApproved}, Page{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 1 {
			t.Errorf("Expected 1 approved certificate, got %d", total)
		}
	})
}

func TestReportStore(t *testing.T) {
	ctx := context.Background()

	newReport := func(typ models.ReportType, source string) *models.Report {
		return &models.Report{
			ReportType:  typ,
			SourceID:    source,
			SourceTable: string(typ) + "_logs",
			Title:       "Report for " + source,
			ApprovedAt:  time.Now(),
		}
	}

	t.Run("client view hides internal types", func(t *testing.T) {
		s := createTestStore(t)
		if err := s.Reports.Create(ctx, newReport(models.ReportUtility, "u1")); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Reports.Create(ctx, newReport(models.ReportChemical, "c1")); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Reports.Create(ctx, newReport(models.ReportNVPC, "n1")); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		all, total, err := s.Reports.List(ctx, ReportFilter{}, Page{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 3 || len(all) != 3 {
			t.Fatalf("Expected 3 reports, got %d", total)
		}

		visible, total, err := s.Reports.List(ctx, ReportFilter{ClientView: true}, Page{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 2 {
			t.Errorf("Expected 2 client-visible reports, got %d", total)
		}
		for _, r := range visible {
			if !r.ReportType.ClientVisible() {
				t.Errorf("Report type %s leaked into client view", r.ReportType)
			}
		}
	})

	t.Run("delete by source", func(t *testing.T) {
		s := createTestStore(t)
		r := newReport(models.ReportUtility, "src-9")
		if err := s.Reports.Create(ctx, r); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		n, err := s.Reports.DeleteBySource(ctx, r.SourceTable, "src-9")
		if err != nil {
			t.Fatalf("DeleteBySource failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 deleted report row, got %d", n)
		}
	})
}

func TestInstrumentStore(t *testing.T) {
	ctx := context.Background()

	newInstrument := func(name string, due time.Time) *models.Instrument {
		return &models.Instrument{
			Name:               name,
			SerialNumber:       name + "-SN",
			CalibrationDate:    due.AddDate(-1, 0, 0),
			CalibrationDueDate: due,
			IsActive:           true,
		}
	}

	t.Run("status filter buckets by due date", func(t *testing.T) {
		s := createTestStore(t)
		now := time.Now()
		if err := s.Instruments.Create(ctx, newInstrument("anemometer", now.AddDate(0, 6, 0))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Instruments.Create(ctx, newInstrument("counter", now.Add(10*24*time.Hour))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Instruments.Create(ctx, newInstrument("manometer", now.AddDate(0, -1, 0))); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		for _, tt := range []struct {
			status limits.CalStatus
			want   string
		}{
			{limits.CalValid, "anemometer"},
			{limits.CalExpiring, "counter"},
			{limits.CalExpired, "manometer"},
		} {
			list, total, err := s.Instruments.List(ctx, InstrumentFilter{Status: tt.status}, Page{}, now)
			if err != nil {
				t.Fatalf("List(%s) failed: %v", tt.status, err)
			}
			if total != 1 || list[0].Name != tt.want {
				t.Errorf("List(%s): expected %s, got total=%d", tt.status, tt.want, total)
			}
		}
	})

	t.Run("due within horizon", func(t *testing.T) {
		s := createTestStore(t)
		now := time.Now()
		if err := s.Instruments.Create(ctx, newInstrument("soon", now.Add(5*24*time.Hour))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := s.Instruments.Create(ctx, newInstrument("later", now.AddDate(1, 0, 0))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		due, err := s.Instruments.DueWithin(ctx, now.Add(30*24*time.Hour))
		if err != nil {
			t.Fatalf("DueWithin failed: %v", err)
		}
		if len(due) != 1 || due[0].Name != "soon" {
			t.Errorf("Expected only the soon instrument, got %d rows", len(due))
		}
	})
}
