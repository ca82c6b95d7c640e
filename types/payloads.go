package types

// Payload schemas for the built-in artifact types. The reducer never looks
// inside payloads; these exist for the canvas renderers, which narrow the
// opaque payload to one of these shapes.

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Progress fields shared by streaming payloads.
type Progress struct {
	// Stage names the producer step currently running (e.g. "geocoding").
	Stage string `json:"stage,omitempty"`
	// Progress is the completion ratio in [0, 1].
	Progress float64 `json:"progress,omitempty"`
}

// Facility is one healthcare facility marker.
type Facility struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Kind        string   `json:"kind,omitempty"`
	Region      string   `json:"region,omitempty"`
	Capacity    int      `json:"capacity,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
}

// FacilityMapPayload is the payload of a facility-map artifact.
type FacilityMapPayload struct {
	Progress
	Title      string     `json:"title"`
	Center     LatLng     `json:"center"`
	Zoom       float64    `json:"zoom"`
	Facilities []Facility `json:"facilities"`
}

// DesertZone is one under-served area.
type DesertZone struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	RadiusKm          float64 `json:"radiusKm"`
	Population        int     `json:"population"`
	NearestFacilityKm float64 `json:"nearestFacilityKm"`
	Severity          string  `json:"severity"`
}

// MedicalDesertPayload is the payload of a medical-desert artifact.
type MedicalDesertPayload struct {
	Progress
	Title   string       `json:"title"`
	Region  string       `json:"region,omitempty"`
	Center  LatLng       `json:"center"`
	Zoom    float64      `json:"zoom"`
	Deserts []DesertZone `json:"deserts"`
}

// Metric is one headline number on a dashboard.
type Metric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Delta float64 `json:"delta,omitempty"`
}

// SeriesPoint is one labelled value of a chart series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Chart is one dashboard chart.
type Chart struct {
	Title  string        `json:"title"`
	Kind   string        `json:"kind"`
	Series []SeriesPoint `json:"series"`
}

// StatsDashboardPayload is the payload of a stats-dashboard artifact.
type StatsDashboardPayload struct {
	Progress
	Title   string   `json:"title"`
	Metrics []Metric `json:"metrics"`
	Charts  []Chart  `json:"charts"`
}

// MissionStep is one step of a mission plan.
type MissionStep struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	FacilityID string `json:"facilityId,omitempty"`
	ETA        string `json:"eta,omitempty"`
}

// MissionPlanPayload is the payload of a mission-plan artifact.
type MissionPlanPayload struct {
	Progress
	Title     string        `json:"title"`
	Objective string        `json:"objective,omitempty"`
	Steps     []MissionStep `json:"steps"`
}

// Payload is a narrowed artifact payload: one of the built-in payload
// schemas or OpaquePayload.
type Payload interface {
	// ArtifactType returns the artifact type the payload belongs to.
	ArtifactType() string
}

// OpaquePayload carries a payload that did not narrow to a known schema.
type OpaquePayload struct {
	Type string
	Raw  any
}

func (p *FacilityMapPayload) ArtifactType() string    { return ArtifactFacilityMap }
func (p *MedicalDesertPayload) ArtifactType() string  { return ArtifactMedicalDesert }
func (p *StatsDashboardPayload) ArtifactType() string { return ArtifactStatsDashboard }
func (p *MissionPlanPayload) ArtifactType() string    { return ArtifactMissionPlan }
func (p *OpaquePayload) ArtifactType() string         { return p.Type }
