package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/realtime"
	"github.com/camden-git/mediaidentity/repository"
)

// TaskType constants
const (
	TaskThumbnail = "thumbnail"
	TaskMetadata  = "metadata"
)

type ImageJob struct {
	PhotoID  string
	TaskType string
}

// Thumbnailer produces the stored preview of an original.
type Thumbnailer interface {
	GenerateThumbnail(ctx context.Context, sourcePath, displayName string) (string, error)
	GenerateEventThumbnail(ctx context.Context, sourcePath, displayName, eventName string) (string, error)
}

// EventPublisher receives task status notifications.
type EventPublisher interface {
	Broadcast(event realtime.Event)
}

type ImageProcessor struct {
	JobQueue chan ImageJob
	Photos   repository.PhotoRepositoryInterface
	Store    media.Store
	Thumbs   Thumbnailer
	Events   EventPublisher
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	// ExtractMetadata reads EXIF data; replaced in tests.
	ExtractMetadata func(path string) (*media.Metadata, error)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewImageProcessor(photos repository.PhotoRepositoryInterface, store media.Store, thumbs Thumbnailer, events EventPublisher, queueSize, numWorkers int) *ImageProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &ImageProcessor{
		JobQueue:        make(chan ImageJob, queueSize),
		Photos:          photos,
		Store:           store,
		Thumbs:          thumbs,
		Events:          events,
		StopChan:        make(chan struct{}),
		Pending:         make(map[string]bool),
		ExtractMetadata: media.ExtractMetadata,
		ctx:             ctx,
		cancel:          cancel,
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d image processing worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func pendingKey(job ImageJob) string {
	return fmt.Sprintf("%s:%s", job.PhotoID, job.TaskType)
}

// worker processes jobs from the queue
func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()

	log.Printf("Image worker %d started", id)
	for {
		select {
		case job, ok := <-ip.JobQueue:
			if !ok {
				log.Printf("Image worker %d stopping: Job queue closed", id)
				return
			}
			log.Printf("Worker %d: Received job type '%s' for photo %s", id, job.TaskType, job.PhotoID)
			ip.run(id, job)

			ip.Mutex.Lock()
			delete(ip.Pending, pendingKey(job))
			ip.Mutex.Unlock()

		case <-ip.StopChan:
			log.Printf("Image worker %d stopping: Stop signal received", id)
			return
		}
	}
}

func (ip *ImageProcessor) run(id int, job ImageJob) {
	switch job.TaskType {
	case TaskThumbnail, TaskMetadata:
	default:
		log.Printf("Worker %d: ERROR unknown task type '%s' for photo %s", id, job.TaskType, job.PhotoID)
		return
	}

	if err := ip.Photos.MarkTaskProcessing(job.PhotoID, job.TaskType+"_status"); err != nil {
		log.Printf("Worker %d: ERROR marking %s processing for photo %s: %v. Skipping job.", id, job.TaskType, job.PhotoID, err)
		return
	}
	ip.publish(job, models.StatusProcessing, nil)

	photo, sourcePath, err := ip.locate(job.PhotoID)
	var taskErr error
	switch job.TaskType {
	case TaskThumbnail:
		taskErr = ip.processThumbnailTask(photo, sourcePath, err)
	case TaskMetadata:
		taskErr = ip.processMetadataTask(job.PhotoID, sourcePath, err)
	}

	status := models.StatusDone
	if taskErr != nil {
		status = models.StatusFailed
	}
	ip.publish(job, status, taskErr)
}

// locate loads the photo and checks that its original is still on disk.
func (ip *ImageProcessor) locate(photoID string) (*models.Photo, string, error) {
	photo, err := ip.Photos.GetByID(photoID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load photo: %w", err)
	}
	fullPath, err := ip.Store.GetFullPath(photo.OriginalPath)
	if err != nil {
		return photo, "", err
	}
	if _, statErr := os.Stat(fullPath); errors.Is(statErr, os.ErrNotExist) {
		return photo, "", fmt.Errorf("original file not found: %w", statErr)
	} else if statErr != nil {
		return photo, "", fmt.Errorf("failed to stat original file: %w", statErr)
	}
	return photo, fullPath, nil
}

// processThumbnailTask generates the thumbnail and updates the DB
func (ip *ImageProcessor) processThumbnailTask(photo *models.Photo, sourcePath string, locateErr error) error {
	if photo == nil {
		log.Printf("Worker: Skipping thumbnail task: %v", locateErr)
		return locateErr
	}

	var thumbPathPtr *string
	taskErr := locateErr
	if taskErr == nil {
		var thumbPath string
		if photo.EventName != nil && *photo.EventName != "" {
			thumbPath, taskErr = ip.Thumbs.GenerateEventThumbnail(ip.ctx, sourcePath, photo.Filename, *photo.EventName)
		} else {
			thumbPath, taskErr = ip.Thumbs.GenerateThumbnail(ip.ctx, sourcePath, photo.Filename)
		}
		if taskErr != nil {
			taskErr = fmt.Errorf("thumbnail generation failed: %w", taskErr)
			log.Printf("Worker: ERROR %v", taskErr)
		} else {
			thumbPathPtr = &thumbPath
			log.Printf("Worker: Generated thumbnail for photo %s", photo.ID)
		}
	} else {
		log.Printf("Worker: Skipping thumbnail task for photo %s: %v", photo.ID, taskErr)
	}

	if dbErr := ip.Photos.UpdateThumbnailResult(photo.ID, thumbPathPtr, taskErr); dbErr != nil {
		log.Printf("Worker: ERROR updating thumbnail DB result for photo %s: %v", photo.ID, dbErr)
	}
	return taskErr
}

func (ip *ImageProcessor) processMetadataTask(photoID, sourcePath string, locateErr error) error {
	var metadata *media.Metadata
	taskErr := locateErr
	if taskErr == nil {
		metadata, taskErr = ip.ExtractMetadata(sourcePath)
		if taskErr != nil {
			log.Printf("Worker: ERROR extracting metadata for photo %s: %v", photoID, taskErr)
		} else {
			log.Printf("Worker: Extracted metadata for photo %s", photoID)
		}
	} else {
		log.Printf("Worker: Skipping metadata task for photo %s: %v", photoID, taskErr)
	}

	if dbErr := ip.Photos.UpdateMetadataResult(photoID, metadata, taskErr); dbErr != nil {
		log.Printf("Worker: ERROR updating metadata DB result for photo %s: %v", photoID, dbErr)
	}
	return taskErr
}

func (ip *ImageProcessor) publish(job ImageJob, status string, taskErr error) {
	if ip.Events == nil {
		return
	}
	event := realtime.Event{
		Type:    realtime.EventTaskUpdate,
		PhotoID: job.PhotoID,
		Task:    job.TaskType,
		Status:  status,
	}
	if taskErr != nil {
		event.Error = taskErr.Error()
	}
	ip.Events.Broadcast(event)
}

// QueueJob queues a specific task if not already pending
func (ip *ImageProcessor) QueueJob(job ImageJob) bool {
	key := pendingKey(job)

	ip.Mutex.Lock()
	if ip.Pending[key] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[key] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- job:
		log.Printf("Queued task '%s' for photo %s", job.TaskType, job.PhotoID)
		return true
	default:
		log.Printf("WARNING: Image processing job queue full. Failed to queue task '%s' for photo %s", job.TaskType, job.PhotoID)
		ip.Mutex.Lock()
		delete(ip.Pending, key)
		ip.Mutex.Unlock()
		return false
	}
}

// QueuePhoto queues the metadata and thumbnail tasks of a photo. It
// reports whether both were accepted.
func (ip *ImageProcessor) QueuePhoto(photoID string) bool {
	metadata := ip.QueueJob(ImageJob{PhotoID: photoID, TaskType: TaskMetadata})
	thumbnail := ip.QueueJob(ImageJob{PhotoID: photoID, TaskType: TaskThumbnail})
	return metadata && thumbnail
}

func (ip *ImageProcessor) Stop() {
	log.Println("Stopping image processor workers...")
	ip.cancel()
	close(ip.StopChan)
	ip.Wg.Wait()
	log.Println("All image processor workers stopped")
}
