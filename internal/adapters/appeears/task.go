package appeears

import "appeearsfetch/internal/core/domain"

type taskDate struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type taskLayer struct {
	Layer   string `json:"layer"`
	Product string `json:"product"`
}

type taskCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type taskOutput struct {
	Format string `json:"format"`
}

type taskParams struct {
	Dates       []taskDate       `json:"dates"`
	Layers      []taskLayer      `json:"layers"`
	Coordinates []taskCoordinate `json:"coordinates"`
	Output      taskOutput       `json:"output"`
}

type task struct {
	TaskType string     `json:"task_type"`
	TaskName string     `json:"task_name"`
	Params   taskParams `json:"params"`
}

func buildTask(jr domain.JobRequest) task {
	return task{
		TaskType: "point",
		TaskName: jr.Name,
		Params: taskParams{
			Dates: []taskDate{{
				StartDate: jr.StartDate.Format(domain.DateLayout),
				EndDate:   jr.EndDate.Format(domain.DateLayout),
			}},
			Layers:      []taskLayer{{Layer: jr.Layer, Product: jr.Product}},
			Coordinates: []taskCoordinate{{Latitude: jr.Latitude, Longitude: jr.Longitude}},
			Output:      taskOutput{Format: jr.OutputFormat},
		},
	}
}

// statusResponse covers both shapes the status endpoint returns: the status
// at the top level, or nested under "task".
type statusResponse struct {
	Status string `json:"status"`
	Task   *struct {
		Status string `json:"status"`
	} `json:"task"`
}

// normalize returns the top-level status if set, then the nested one, then
// StatusUnknown.
func (r statusResponse) normalize() domain.JobStatus {
	if s := domain.ParseJobStatus(r.Status); s != domain.StatusUnknown {
		return s
	}
	if r.Task != nil {
		return domain.ParseJobStatus(r.Task.Status)
	}
	return domain.StatusUnknown
}
