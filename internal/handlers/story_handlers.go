package handlers

import (
	"net/http"

	"athemaria/internal/models"
	"athemaria/internal/services"
)

// StoryDetail is a story with its rating summary.
type StoryDetail struct {
	*models.Story
	Rating models.AverageRating `json:"rating"`
}

// ReadRequest optionally names the chapter being read.
type ReadRequest struct {
	ChapterID string `json:"chapterId"`
}

// HandleListStories serves the public listing: ?genre=&sort=new|popular&limit=
func (s *Server) HandleListStories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, err)
			return
		}
		q := r.URL.Query()
		stories, err := s.Stories.GetPublishedStories(r.Context(), services.ListOptions{
			Genre: q.Get("genre"),
			Sort:  q.Get("sort"),
			Limit: limit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

func (s *Server) HandleSearchStories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, err)
			return
		}
		stories, err := s.Stories.SearchStories(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

// HandleGetStory returns a story with its average rating.
func (s *Server) HandleGetStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		story, err := s.visibleStory(r, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StoryDetail{
			Story:  story,
			Rating: s.Ratings.GetAverageRating(r.Context(), id),
		})
	}
}

func (s *Server) HandleCreateStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.CreateStoryInput
		if err := decodeJSON(w, r, &input, false); err != nil {
			writeError(w, err)
			return
		}
		story, err := s.Stories.CreateStory(r.Context(), currentUser(r), input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, story)
	}
}

func (s *Server) HandleUpdateStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch services.UpdateStoryInput
		if err := decodeJSON(w, r, &patch, false); err != nil {
			writeError(w, err)
			return
		}
		story, err := s.Stories.UpdateStory(r.Context(), r.PathValue("id"), currentUser(r), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, story)
	}
}

// HandleDeleteStory soft-deletes; the story stays restorable until purged.
func (s *Server) HandleDeleteStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Stories.SoftDeleteStory(r.Context(), r.PathValue("id"), currentUser(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleRestoreStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		story, err := s.Stories.RestoreStory(r.Context(), r.PathValue("id"), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, story)
	}
}

// HandleUploadCover accepts a multipart "file" field.
func (s *Server) HandleUploadCover() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, filename, contentType, err := uploadedFile(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer file.Close()

		story, err := s.Stories.UploadCover(r.Context(), r.PathValue("id"), currentUser(r), filename, contentType, file)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, story)
	}
}

func (s *Server) HandleAddChapter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.ChapterInput
		if err := decodeJSON(w, r, &input, false); err != nil {
			writeError(w, err)
			return
		}
		chapter, err := s.Stories.AddChapter(r.Context(), r.PathValue("id"), currentUser(r), input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, chapter)
	}
}

func (s *Server) HandleUpdateChapter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.ChapterInput
		if err := decodeJSON(w, r, &input, false); err != nil {
			writeError(w, err)
			return
		}
		chapter, err := s.Stories.UpdateChapter(r.Context(), r.PathValue("id"), r.PathValue("chapterId"), currentUser(r), input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chapter)
	}
}

func (s *Server) HandleDeleteChapter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.Stories.DeleteChapter(r.Context(), r.PathValue("id"), r.PathValue("chapterId"), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRecordRead stores reading progress and bumps the read count.
func (s *Server) HandleRecordRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReadRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.visibleStory(r, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		progress, err := s.Progress.RecordRead(r.Context(), currentUser(r), r.PathValue("id"), req.ChapterID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

func (s *Server) HandleMyStories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := s.Stories.GetUserStories(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

func (s *Server) HandleMyDeletedStories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := s.Stories.GetDeletedStories(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

func (s *Server) HandleContinueReading() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, err)
			return
		}
		entries, err := s.Progress.GetContinueReading(r.Context(), currentUser(r), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
