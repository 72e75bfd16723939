package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"durakv/internal/cluster"
	"durakv/internal/store"
)

type masterlessReplicateBody struct {
	Op     string                     `json:"op" binding:"required"`
	Key    string                     `json:"key"`
	Value  string                     `json:"value"`
	Items  []store.Item               `json:"items"`
	Clock  cluster.VectorClock        `json:"clock"`
	Clocks map[string]cluster.VectorClock `json:"clocks"`
}

// RegisterMasterlessCluster mounts the single-node surface plus the
// masterless cluster's /replicate receive path on top of a
// MasterlessNode. Every node accepts writes and reads locally — no
// forwarding, no leader.
func RegisterMasterlessCluster(r *gin.Engine, n *cluster.MasterlessNode) {
	r.POST("/set", func(c *gin.Context) {
		var body setBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := n.Set(body.Key, body.Value, body.Debug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "seq": result.Seq})
	})

	r.GET("/get/:key", func(c *gin.Context) {
		value, ok := n.Get(c.Param("key"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "value": value})
	})

	r.DELETE("/delete/:key", func(c *gin.Context) {
		result, err := n.Delete(c.Param("key"))
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
		result, err := n.BulkSet(toItems(body.Items), body.Debug)
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
		keys := n.SearchText(body.Query, parseMode(body.Mode))
		c.JSON(http.StatusOK, gin.H{"success": true, "keys": keys})
	})

	r.POST("/search/similar", func(c *gin.Context) {
		var body searchSimilarBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		results := n.SearchSimilar(body.Query, defaultTopK(body.TopK))
		pairs := make([][2]any, len(results))
		for i, res := range results {
			pairs[i] = [2]any{res.Key, res.Score}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "results": pairs})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, n.Stats())
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, n.Health())
	})

	r.POST("/replicate", func(c *gin.Context) {
		var body masterlessReplicateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		n.ApplyReplicate(cluster.ReplicateRequest{
			Op:     body.Op,
			Key:    body.Key,
			Value:  body.Value,
			Items:  body.Items,
			Clock:  body.Clock,
			Clocks: body.Clocks,
		})
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
