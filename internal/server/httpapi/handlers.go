package httpapi

import (
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/contentstore"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

const maxFilenameLen = 255

type handlers struct {
	Deps
	sanitizer *bluemonday.Policy
	log       logging.Logger
}

func newHandlers(d Deps, log logging.Logger) *handlers {
	return &handlers{Deps: d, sanitizer: bluemonday.StrictPolicy(), log: log}
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, contentstore.MaxUploadSize+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		h.fail(c, common.ErrInvalidInput.Wrap(err, "multipart field \"file\""))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, common.ErrInvalidInput.Wrap(err, "open upload"))
		return
	}
	defer f.Close()

	name := h.cleanFilename(fh.Filename)
	hash, err := h.Content.Upload(c.Request.Context(), f, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.Upload{ContentHash: hash, Filename: name})
}

// cleanFilename strips markup and path components from a client filename.
func (h *handlers) cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(h.sanitizer.Sanitize(name))
	if len(name) > maxFilenameLen {
		cut := maxFilenameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	return name
}

func (h *handlers) contentURL(c *gin.Context) {
	url, err := h.Content.PresignedURL(c.Request.Context(), c.Param("hash"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *handlers) publish(c *gin.Context) {
	var req api.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidInput.Wrap(err, "decode request"))
		return
	}
	sreq, err := req.ToService()
	if err != nil {
		h.fail(c, err)
		return
	}
	doc, err := h.Lifecycle.Publish(c.Request.Context(), sreq)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewDocument(doc))
}

func (h *handlers) check(c *gin.Context) {
	hash := c.Query("contentHash")
	if hash == "" {
		h.fail(c, common.ErrInvalidInput.New("contentHash query parameter is required"))
		return
	}
	res, err := h.Lifecycle.Check(c.Request.Context(), hash)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CheckResult{Exists: res.Exists, DocumentID: res.DocumentID})
}

func (h *handlers) getDocument(c *gin.Context) {
	doc, err := h.Lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewDocument(doc))
}

func (h *handlers) submit(c *gin.Context) {
	var req api.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidInput.Wrap(err, "decode request"))
		return
	}
	if id := c.Param("id"); id != "" {
		req.DocumentID = id
	}
	sreq, err := req.ToService()
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.Collector.Submit(c.Request.Context(), sreq)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewSignatureResult(res))
}

func (h *handlers) finalize(c *gin.Context) {
	res, err := h.Finalizer.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewFinalAttestation(res))
}

func (h *handlers) verify(c *gin.Context) {
	var req api.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidInput.Wrap(err, "decode request"))
		return
	}
	id, proof, err := api.Claim(req.Identity, req.Proof)
	if err != nil {
		h.fail(c, err)
		return
	}
	verdict, err := h.Verifier.Verify(c.Request.Context(), identity.Claim{
		Identity:    id,
		Proof:       proof,
		Policy:      models.IdentityPolicy(req.IdentityPolicy),
		ContentHash: req.ContentHash,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.Verdict{Valid: verdict.Valid, Reason: verdict.Reason})
}
