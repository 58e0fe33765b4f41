package projection

import "errors"

type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
)

func (s UploadStatus) Valid() bool {
	switch s {
	case UploadPending, UploadProcessing, UploadCompleted:
		return true
	}
	return false
}

var (
	ErrUploadProcessing = errors.New("upload is processing")
	ErrUnknownUpload    = errors.New("unknown upload")
)

type UploadedFile struct {
	Name     string       `json:"name"`
	Size     int64        `json:"size,omitempty"`
	Progress float64      `json:"progress"`
	Status   UploadStatus `json:"status"`
}

// UploadUpdate is a partial update keyed by file name.
type UploadUpdate struct {
	Name     string
	Status   *UploadStatus
	Progress *float64
}

// AddUploads appends new pending files. Names already present are skipped.
func AddUploads(files []UploadedFile, added ...UploadedFile) []UploadedFile {
	out := CloneUploads(files)
	for _, f := range added {
		if f.Name == "" || indexOfUpload(out, f.Name) >= 0 {
			continue
		}
		out = append(out, UploadedFile{Name: f.Name, Size: f.Size, Status: UploadPending})
	}
	return out
}

// ApplyUploadUpdate merges u into the file with the same name. Unknown names
// leave the collection unchanged, and progress of a processing file only
// grows.
func ApplyUploadUpdate(files []UploadedFile, u UploadUpdate) ([]UploadedFile, bool) {
	idx := indexOfUpload(files, u.Name)
	if idx < 0 {
		return files, false
	}

	out := CloneUploads(files)
	f := out[idx]
	wasProcessing := f.Status == UploadProcessing
	if u.Status != nil && u.Status.Valid() {
		f.Status = *u.Status
	}
	if u.Progress != nil {
		p := clampPercent(*u.Progress)
		if !wasProcessing || f.Status != UploadProcessing || p >= f.Progress {
			f.Progress = p
		}
	}
	out[idx] = f
	return out, true
}

// RemoveUpload drops the named file unless it is processing.
func RemoveUpload(files []UploadedFile, name string) ([]UploadedFile, error) {
	idx := indexOfUpload(files, name)
	if idx < 0 {
		return files, ErrUnknownUpload
	}
	if files[idx].Status == UploadProcessing {
		return files, ErrUploadProcessing
	}
	out := make([]UploadedFile, 0, len(files)-1)
	out = append(out, files[:idx]...)
	out = append(out, files[idx+1:]...)
	return out, nil
}

// AnyProcessing reports whether a file is mid-processing.
func AnyProcessing(files []UploadedFile) bool {
	for _, f := range files {
		if f.Status == UploadProcessing {
			return true
		}
	}
	return false
}

// PendingUploads lists the names of files waiting to be processed.
func PendingUploads(files []UploadedFile) []UploadedFile {
	var out []UploadedFile
	for _, f := range files {
		if f.Status == UploadPending {
			out = append(out, f)
		}
	}
	return out
}

func CloneUploads(files []UploadedFile) []UploadedFile {
	if files == nil {
		return nil
	}
	out := make([]UploadedFile, len(files))
	copy(out, files)
	return out
}

func indexOfUpload(files []UploadedFile, name string) int {
	for i := range files {
		if files[i].Name == name {
			return i
		}
	}
	return -1
}
