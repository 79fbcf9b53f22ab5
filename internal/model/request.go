package model

// StudentURI is the :id path parameter of the student routes.
type StudentURI struct {
	ID string `uri:"id" json:"id" binding:"required,number,max=18"`
}

// PrewarmRequest is the payload for queueing students to be scraped ahead of time.
type PrewarmRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100,dive,required,number,max=18"`
}
