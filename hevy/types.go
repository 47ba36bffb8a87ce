package hevy

// Page is one page of the workouts listing. Nullable fields are pointers.
type Page struct {
	Page      int       `json:"page"`
	PageCount int       `json:"page_count"`
	Workouts  []Workout `json:"workouts"`
}

type Workout struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	Exercises   []Exercise `json:"exercises"`
}

type Exercise struct {
	Index              int     `json:"index"`
	Title              string  `json:"title"`
	Notes              string  `json:"notes"`
	ExerciseTemplateID string  `json:"exercise_template_id"`
	SupersetID         *string `json:"superset_id"`
	Sets               []Set   `json:"sets"`
}

type Set struct {
	Index           int      `json:"index"`
	Type            string   `json:"type"` // "normal","dropset","failure",...
	WeightKG        *float64 `json:"weight_kg"`
	Reps            *int     `json:"reps"`
	DistanceMeters  *float64 `json:"distance_meters"`
	DurationSeconds *int     `json:"duration_seconds"`
	RPE             *float64 `json:"rpe"`
	CustomMetric    any      `json:"custom_metric"`
}

// Volume returns total kilograms lifted and total reps across the workout.
func (w *Workout) Volume() (kg float64, reps int) {
	for _, ex := range w.Exercises {
		for _, s := range ex.Sets {
			if s.Reps == nil {
				continue
			}
			reps += *s.Reps
			if s.WeightKG != nil {
				kg += float64(*s.Reps) * *s.WeightKG
			}
		}
	}
	return kg, reps
}
