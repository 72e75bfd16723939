package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"durakv/internal/store"
)

// setBody is the JSON body of POST /set.
type setBody struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
	Debug bool   `json:"debug,omitempty"`
}

// bulkSetBody is the JSON body of POST /bulkset. Items are ordered
// (key, value) pairs, represented as [2]string. An item that is not a JSON
// array of strings fails binding as BadRequest; the pair's length is not
// checked — decoding pads a short pair with "" and drops any elements past
// the second.
type bulkSetBody struct {
	Items [][2]string `json:"items" binding:"required"`
	Debug bool        `json:"debug,omitempty"`
}

// searchTextBody is the JSON body of POST /search/text.
type searchTextBody struct {
	Query string `json:"query" binding:"required"`
	Mode  string `json:"mode"`
}

// searchSimilarBody is the JSON body of POST /search/similar.
type searchSimilarBody struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func toItems(pairs [][2]string) []store.Item {
	items := make([]store.Item, len(pairs))
	for i, p := range pairs {
		items[i] = store.Item{Key: p[0], Value: p[1]}
	}
	return items
}

func parseMode(raw string) store.Mode {
	if store.Mode(raw) == store.ModeOR {
		return store.ModeOR
	}
	return store.ModeAND // default, matches spec.md §6's mode∈{AND,OR} with AND implied
}

func defaultTopK(topK int) int {
	if topK <= 0 {
		return 5
	}
	return topK
}

// RegisterStore mounts the single-node HTTP surface (§6) directly on a
// KVStore — no leader election, no forwarding, no replication.
func RegisterStore(r *gin.Engine, s *store.KVStore) {
	r.POST("/set", func(c *gin.Context) {
		var body setBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := s.Set(body.Key, body.Value, body.Debug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "seq": result.Seq})
	})

	r.GET("/get/:key", func(c *gin.Context) {
		value, ok := s.Get(c.Param("key"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "value": value})
	})

	r.DELETE("/delete/:key", func(c *gin.Context) {
		result, err := s.Delete(c.Param("key"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !result.Success {
			c.JSON(http.StatusNotFound, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "seq": result.Seq})
	})

	r.POST("/bulkset", func(c *gin.Context) {
		var body bulkSetBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := s.BulkSet(toItems(body.Items), body.Debug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "seq": result.Seq, "count": result.Count})
	})

	r.POST("/search/text", func(c *gin.Context) {
		var body searchTextBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		keys := s.SearchText(body.Query, parseMode(body.Mode))
		c.JSON(http.StatusOK, gin.H{"success": true, "keys": keys})
	})

	r.POST("/search/similar", func(c *gin.Context) {
		var body searchSimilarBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		results := s.SearchSimilar(body.Query, defaultTopK(body.TopK))
		pairs := make([][2]any, len(results))
		for i, res := range results {
			pairs[i] = [2]any{res.Key, res.Score}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "results": pairs})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats := s.Stats()
		c.JSON(http.StatusOK, gin.H{"key_count": stats.KeyCount, "wal_size": stats.WalSize})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
