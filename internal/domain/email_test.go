package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestEmailUpdateFromLegacy_KeepsTriageCategory(t *testing.T) {
	office, _ := ParseOfficeID("office-1")
	e := NewEmailFromLegacy(office, TrustedExternalID(9), EmailFields{
		Subject:     stringp("Bin collection"),
		FromAddress: stringp("resident@example.org"),
	})
	e = e.WithTriageCategory("waste")

	updated, changed := e.UpdateFromLegacy(EmailFields{
		Subject:    stringp("Bin collection missed"),
		ReceivedAt: timep(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)),
	})

	if !reflect.DeepEqual(changed, []string{"subject", "received_at"}) {
		t.Fatalf("unexpected changed fields: %v", changed)
	}
	if updated.TriageCategory == nil || *updated.TriageCategory != "waste" {
		t.Fatal("legacy update must not touch the triage category")
	}
	if updated.FromAddress == nil || *updated.FromAddress != "resident@example.org" {
		t.Fatal("absent field must be left untouched")
	}
}

func TestConstituentUpdateFromLegacy(t *testing.T) {
	office, _ := ParseOfficeID("office-1")
	c := NewConstituentFromLegacy(office, TrustedExternalID(5), ConstituentFields{
		FirstName: stringp("Ada"),
		LastName:  stringp("Lovelace"),
	})

	updated, changed := c.UpdateFromLegacy(ConstituentFields{
		Email: stringp("ada@example.org"),
	})
	if !reflect.DeepEqual(changed, []string{"email"}) {
		t.Fatalf("unexpected changed fields: %v", changed)
	}
	if updated.FirstName == nil || *updated.FirstName != "Ada" {
		t.Fatal("absent field must be left untouched")
	}
}
