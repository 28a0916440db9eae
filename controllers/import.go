package controllers

import (
	"errors"
	"net/http"
	"strings"

	"fitsense-backend/importer"
	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
)

const maxImportUpload = 10 << 20

type ImportController struct {
	Importer *services.ImportService
}

type ImportRequest struct {
	Rows []services.ImportRow `json:"rows" binding:"required"`
}

// ImportMembers accepts either a JSON body of rows or a multipart upload
// of a .csv or .xlsx file in the "file" field.
func (ic *ImportController) ImportMembers(c *gin.Context) {
	var rows []services.ImportRow

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "File is required")
			return
		}
		if header.Size > maxImportUpload {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		f, err := header.Open()
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Could not read upload")
			return
		}
		defer f.Close()

		rows, err = importer.Parse(f, header.Filename)
		if err != nil {
			if errors.Is(err, importer.ErrUnsupportedFormat) || errors.Is(err, importer.ErrMissingHeader) {
				utils.RespondWithError(c, http.StatusBadRequest, err.Error())
				return
			}
			utils.RespondWithError(c, http.StatusBadRequest, "Could not parse file: "+err.Error())
			return
		}
	} else {
		var req ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
		rows = req.Rows
	}

	report := ic.Importer.Import(c.Request.Context(), rows, utils.CallerID(c))
	c.JSON(http.StatusOK, report)
}
