package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/staging"
)

// taskMessage is the wire form of an upload task. Staged bytes stay on
// the shared staging volume; only the artifact paths travel over Kafka.
type taskMessage struct {
	TaskID  string        `json:"task_id"`
	OwnerID int64         `json:"owner_id"`
	Items   []itemMessage `json:"items"`
}

type itemMessage struct {
	OriginalName  string `json:"original_name"`
	ContentType   string `json:"content_type"`
	StagingPath   string `json:"staging_path"`
	ContentHash   string `json:"content_hash"`
	SequenceIndex int    `json:"sequence_index"`
	Size          int64  `json:"size"`
	Format        string `json:"format,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
}

func encodeTask(task *domain.UploadTask) ([]byte, error) {
	msg := taskMessage{
		TaskID:  task.ID,
		OwnerID: task.OwnerID,
		Items:   make([]itemMessage, 0, len(task.Items)),
	}
	for _, item := range task.Items {
		msg.Items = append(msg.Items, itemMessage{
			OriginalName:  item.OriginalName,
			ContentType:   item.ContentType,
			StagingPath:   item.Handle.Path(),
			ContentHash:   item.ContentHash,
			SequenceIndex: item.SequenceIndex,
			Size:          item.Size,
			Format:        item.Meta.Format,
			Width:         item.Meta.Width,
			Height:        item.Meta.Height,
		})
	}
	return json.Marshal(msg)
}

// decodeTask rebuilds an upload task on the consumer side, re-issuing a
// staging handle per item through the local manager. An item whose
// artifact is gone is dropped with a warning rather than failing the
// whole task.
func decodeTask(data []byte, manager *staging.Manager) (*domain.UploadTask, []string, error) {
	var msg taskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal task message: %w", err)
	}
	if msg.TaskID == "" || msg.OwnerID == 0 {
		return nil, nil, fmt.Errorf("invalid task message: empty task_id or owner_id")
	}

	task := &domain.UploadTask{
		ID:      msg.TaskID,
		OwnerID: msg.OwnerID,
		Items:   make([]domain.StagedItem, 0, len(msg.Items)),
	}
	var missing []string

	for _, im := range msg.Items {
		handle, err := manager.Adopt(im.StagingPath)
		if err != nil {
			missing = append(missing, im.StagingPath)
			continue
		}
		task.Items = append(task.Items, domain.StagedItem{
			OwnerID:       msg.OwnerID,
			OriginalName:  im.OriginalName,
			Handle:        handle,
			ContentHash:   im.ContentHash,
			SequenceIndex: im.SequenceIndex,
			ContentType:   im.ContentType,
			Size:          im.Size,
			Meta: domain.ImageMeta{
				Format: im.Format,
				Width:  im.Width,
				Height: im.Height,
			},
		})
	}

	return task, missing, nil
}
