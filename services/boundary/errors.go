// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package boundary

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pathlore/pathlore/services/perr"
)

// writeError maps err's Kind to an HTTP status and writes the stable
// error body; internal detail never leaves this function.
func writeError(c *gin.Context, err error) {
	kind := perr.KindOf(err)
	status := statusFor(kind)
	c.JSON(status, ErrorResponse{Kind: string(kind), Message: messageFor(kind, err)})
}

func statusFor(kind perr.Kind) int {
	switch kind {
	case perr.KindValidation:
		return http.StatusBadRequest
	case perr.KindNotFound:
		return http.StatusNotFound
	case perr.KindConflict:
		return http.StatusConflict
	case perr.KindLlmUnavailable:
		return http.StatusServiceUnavailable
	case perr.KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(kind perr.Kind, err error) string {
	if kind == perr.KindInternal {
		return "an internal error occurred"
	}
	return err.Error()
}
