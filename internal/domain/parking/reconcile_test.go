package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observation(plate, street string, observedAt time.Time) Observation {
	return Observation{LicencePlate: plate, StreetName: street, ObservedAt: observedAt}
}

func TestReconcile_ReportsPlatesWithoutSession(t *testing.T) {
	now := at(2023, 11, 20, 12, 0, 0)
	registered := now.Add(-2 * time.Minute)
	sessions := []Session{{
		LicencePlate:   "PB12x1234",
		StreetName:     "Java",
		RegisteredAt:   registered,
		DeregisteredAt: &now,
		Status:         StatusRegistered,
	}}
	observations := []Observation{
		observation("PB12x1234", "Java", now),
		observation("PB13x1234", "Java", now),
	}

	entries := Reconcile(sessions, observations)

	require.Len(t, entries, 1)
	assert.Equal(t, ReportEntry{LicencePlate: "PB13x1234", StreetName: "Java", ObservedAt: now}, entries[0])
}

func TestReconcile_MultipleUnregisteredPlates(t *testing.T) {
	now := at(2023, 11, 20, 12, 0, 0)
	sessions := []Session{
		{LicencePlate: "PB12x1234", StreetName: "Java", RegisteredAt: now.Add(-2 * time.Minute), DeregisteredAt: &now},
		{LicencePlate: "PB13x1234", StreetName: "Java", RegisteredAt: now, DeregisteredAt: &now},
	}
	observations := []Observation{
		observation("PB12x1234", "Java", now),
		observation("HP12x1234", "Jakarta", now),
		observation("MH12x1234", "Azure", now),
	}

	entries := Reconcile(sessions, observations)

	require.Len(t, entries, 2)
	assert.Equal(t, "HP12x1234", entries[0].LicencePlate)
	assert.Equal(t, "MH12x1234", entries[1].LicencePlate)
}

func TestReconcile_OutsideRegistrationPredicate(t *testing.T) {
	registered := at(2023, 11, 20, 14, 0, 0)
	deregistered := at(2023, 11, 20, 10, 0, 0)
	sessions := []Session{{
		LicencePlate:   "PB12x1234",
		StreetName:     "Java",
		RegisteredAt:   registered,
		DeregisteredAt: &deregistered,
	}}

	t.Run("between de-registration and registration", func(t *testing.T) {
		entries := Reconcile(sessions, []Observation{observation("PB12x1234", "Java", at(2023, 11, 20, 12, 0, 0))})

		require.Len(t, entries, 1)
		assert.Equal(t, "PB12x1234", entries[0].LicencePlate)
	})

	t.Run("other street is not matched", func(t *testing.T) {
		entries := Reconcile(sessions, []Observation{observation("PB12x1234", "Azure", at(2023, 11, 20, 12, 0, 0))})

		assert.Empty(t, entries)
	})

	t.Run("ordinary interval never matches", func(t *testing.T) {
		from := at(2023, 11, 20, 9, 0, 0)
		to := at(2023, 11, 20, 10, 0, 0)
		ordinary := []Session{{LicencePlate: "PB12x1234", StreetName: "Java", RegisteredAt: from, DeregisteredAt: &to}}

		entries := Reconcile(ordinary, []Observation{
			observation("PB12x1234", "Java", at(2023, 11, 20, 8, 0, 0)),
			observation("PB12x1234", "Java", at(2023, 11, 20, 9, 30, 0)),
			observation("PB12x1234", "Java", at(2023, 11, 20, 11, 0, 0)),
		})

		assert.Empty(t, entries)
	})
}

func TestReconcile_OpenSessionCoversObservation(t *testing.T) {
	now := at(2023, 11, 20, 12, 0, 0)
	sessions := []Session{{LicencePlate: "PB12x1234", StreetName: "Java", RegisteredAt: now.Add(-time.Hour), Status: StatusRegistered}}

	entries := Reconcile(sessions, []Observation{observation("PB12x1234", "Java", now)})

	assert.Empty(t, entries)
}

func TestReconcile_EmptyInput(t *testing.T) {
	entries := Reconcile(nil, nil)

	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
