package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/models"
	"github.com/go-while/go-goatweb/internal/view"
	log "github.com/sirupsen/logrus"
)

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

func (h *handlers) dashboard(c *gin.Context) {
	user := currentUser(c)
	count, err := h.db.CountMemos(user.ID)
	if err != nil {
		log.WithError(err).Error("dashboard: count memos failed")
		h.renderError(c, http.StatusInternalServerError, "Database error")
		return
	}
	view.HTML(c, http.StatusOK, "dashboard.html", gin.H{
		"title":     "Dashboard",
		"memoCount": count,
		"flashes":   flashes(c),
	})
}

func (h *handlers) memosPage(c *gin.Context) {
	memos, err := h.db.GetMemos(database.DefaultMemoLimit)
	if err != nil {
		log.WithError(err).Error("memos: load failed")
		h.renderError(c, http.StatusInternalServerError, "Database error")
		return
	}
	view.HTML(c, http.StatusOK, "memos.html", gin.H{
		"title":   "Memos",
		"memos":   memos,
		"flashes": flashes(c),
	})
}

// memosSubmit stores the memo as written. The markdown is rendered through
// "marked" when the page is shown.
func (h *handlers) memosSubmit(c *gin.Context) {
	body := models.CleanMemoBody(c.PostForm("memo"))
	if strings.TrimSpace(body) == "" {
		flash(c, "Memo must not be empty")
		c.Redirect(http.StatusFound, "/memos")
		return
	}

	memo := &models.Memo{UserID: currentUser(c).ID, Body: body}
	if err := h.db.InsertMemo(memo); err != nil {
		log.WithError(err).Error("memos: insert failed")
		h.renderError(c, http.StatusInternalServerError, "Failed to save memo")
		return
	}
	if h.metrics != nil {
		h.metrics.MemosCreated.Inc()
	}
	c.Redirect(http.StatusFound, "/memos")
}
