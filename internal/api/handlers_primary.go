package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"durakv/internal/cluster"
	"durakv/internal/store"
)

type replicateBody struct {
	Op    string      `json:"op" binding:"required"`
	Key   string      `json:"key"`
	Value string      `json:"value"`
	Items []store.Item `json:"items"`
}

type electionBody struct {
	From int `json:"from"`
}

type coordinatorBody struct {
	LeaderID int `json:"leader_id"`
}

type heartbeatBody struct {
	LeaderID int `json:"leader_id"`
}

// RegisterPrimaryCluster mounts the single-node surface plus the
// primary-election cluster endpoints (§6 cluster-only routes) on top of a
// ClusterNode: writes/reads forward to the leader, and /replicate,
// /election, /coordinator, /heartbeat drive the Bully state machine.
func RegisterPrimaryCluster(r *gin.Engine, n *cluster.ClusterNode) {
	r.POST("/set", func(c *gin.Context) {
		var body setBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := n.Set(body.Key, body.Value, body.Debug)
		if err != nil {
			writeClusterError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "seq": result.Seq})
	})

	r.GET("/get/:key", func(c *gin.Context) {
		value, ok, err := n.Get(c.Param("key"))
		if err != nil {
			writeClusterError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "value": value})
	})

	r.DELETE("/delete/:key", func(c *gin.Context) {
		result, err := n.Delete(c.Param("key"))
		if err != nil {
			writeClusterError(c, err)
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
			writeClusterError(c, err)
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
		info := n.Health()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node_id": info.NodeID, "is_leader": info.IsLeader, "leader_id": info.LeaderID})
	})

	r.POST("/replicate", func(c *gin.Context) {
		var body replicateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		n.ApplyReplicate(cluster.NewReplicateRequest(body.Op, body.Key, body.Value, body.Items))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	r.POST("/election", func(c *gin.Context) {
		var body electionBody
		_ = c.ShouldBindJSON(&body)
		n.ReceiveElection(body.From)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	r.POST("/coordinator", func(c *gin.Context) {
		var body coordinatorBody
		_ = c.ShouldBindJSON(&body)
		n.ReceiveCoordinator(body.LeaderID)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	r.POST("/heartbeat", func(c *gin.Context) {
		var body heartbeatBody
		_ = c.ShouldBindJSON(&body)
		n.ReceiveHeartbeat(body.LeaderID)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// writeClusterError maps the NoLeader/LeaderUnreachable error taxonomy
// (§7) onto the spec's 503 response.
func writeClusterError(c *gin.Context, err error) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
}
