package dto

// IncidentFilter narrows historical incident queries. Bounds are inclusive and compared
// lexically against incident timestamps; empty means unbounded.
type IncidentFilter struct {
	StartDate string
	EndDate   string
}
