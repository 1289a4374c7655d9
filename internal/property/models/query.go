package models

import id "propnest/pkg/domain"

// NearbyQuery selects listings within a radius of a point.
type NearbyQuery struct {
	Point        GeoPoint
	RadiusMeters float64
	Statuses     []Status
	// ExcludeOwner drops listings owned by this user; zero means no exclusion.
	ExcludeOwner id.UserID
	Limit        int
}

// Nearby is a proximity match ordered by distance.
type Nearby struct {
	Property       *Property
	DistanceMeters float64
}

// ListFilter selects listings for browse queries, newest first.
type ListFilter struct {
	Statuses        []Status
	OwnerID         id.UserID
	City            string
	Category        Category
	TransactionType TransactionType
	Limit           int
	Offset          int
}
