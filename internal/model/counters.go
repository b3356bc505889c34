package model

type SyncCounters struct {
	Pulled            int `json:"pulled"`
	Pushed            int `json:"pushed"`
	Cloned            int `json:"cloned"`
	EmptyDeleted      int `json:"empty_deleted"`
	UpToDate          int `json:"up_to_date"`
	Failed            int `json:"failed"`
	ConflictsResolved int `json:"conflicts_resolved"`
}
