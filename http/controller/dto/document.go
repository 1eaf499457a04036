package dto

type SignedURLsRequestDTO struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type CopyRequestDTO struct {
	SourcePaths       []string `json:"source_paths" binding:"required,min=1"`
	DestinationFolder string   `json:"destination_folder" binding:"required"`
}
