package storage

import "wedding-site/internal/models"

// DemoInvitations is the fixed sample guest list used when no live backend
// is configured.
func DemoInvitations() []models.Invitation {
	return []models.Invitation{
		{
			ID:         "demo-1",
			Code:       "SMITH01",
			PartyName:  "The Smith Family",
			GuestNames: models.StringList{"John Smith", "Jane Smith", "Tommy Smith", "Sarah Smith"},
			PartySize:  4,
			Email:      "john.smith@email.com",
		},
		{
			ID:         "demo-2",
			Code:       "JONES02",
			PartyName:  "Michael & Lisa Jones",
			GuestNames: models.StringList{"Michael Jones", "Lisa Jones"},
			PartySize:  2,
			Email:      "mjones@email.com",
		},
		{
			ID:         "demo-3",
			Code:       "BROWN03",
			PartyName:  "David Brown",
			GuestNames: models.StringList{"David Brown"},
			PartySize:  1,
			Email:      "dbrown@email.com",
		},
		{
			ID:         "demo-4",
			Code:       "WILSON4",
			PartyName:  "The Wilson Family",
			GuestNames: models.StringList{"Robert Wilson", "Emily Wilson", "Jack Wilson"},
			PartySize:  3,
			Email:      "rwilson@email.com",
		},
		{
			ID:         "demo-5",
			Code:       "TAYLOR5",
			PartyName:  "Sarah Taylor & Guest",
			GuestNames: models.StringList{"Sarah Taylor", "Guest"},
			PartySize:  2,
			Email:      "staylor@email.com",
		},
	}
}
