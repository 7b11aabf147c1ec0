package model

import (
	"database/sql"
	"time"
)

// Venue represents a studio or gym that publishes sessions on the
// marketplace.  Each venue is owned by a VENUE user; class types,
// sessions and credit packages hang off a venue.
//
// Fields:
//  ID          – primary key identifier.
//  OwnerID     – VENUE user who manages this venue.
//  Name        – display name of the venue.
//  Description – optional free-form description.
//  City        – city where the venue is located.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Venue struct {
	ID          uint64         // venues.id
	OwnerID     uint64         // venues.owner_id
	Name        string         // venues.name
	Description sql.NullString // venues.description (nullable)
	City        string         // venues.city
	CreatedAt   time.Time      // venues.created_at
	UpdatedAt   time.Time      // venues.updated_at
}

// ClassType describes a kind of class a venue offers (e.g. yoga,
// spinning, crossfit).  Sessions reference a class type for display
// and filtering; the settlement engine never touches it.
//
// Fields:
//  ID          – primary key identifier.
//  VenueID     – venue offering this class type.
//  Name        – class type name.
//  Description – optional description of the class.
//  DurationMin – typical duration in minutes.
//  CreatedAt   – creation timestamp.
type ClassType struct {
	ID          uint64         // class_types.id
	VenueID     uint64         // class_types.venue_id
	Name        string         // class_types.name
	Description sql.NullString // class_types.description (nullable)
	DurationMin uint32         // class_types.duration_min
	CreatedAt   time.Time      // class_types.created_at
}
