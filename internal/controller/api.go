package controller

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/unicornultrafoundation/meshbridge/internal/protocol"
)

// SetupRoutes configures all API routes.
func (ctrl *Controller) SetupRoutes(r *gin.Engine) {
	// Public routes
	r.POST("/api/v1/auth/login", ctrl.handleLogin)
	r.POST("/api/v1/auth/register", ctrl.handleRegister)

	// Node bootstrap WebSocket (authenticated via headers)
	r.GET("/api/v1/node/connect", ctrl.ws.HandleNodeConnect)

	// Protected API routes
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(ctrl.jwtSecret))
	{
		// Clouds
		api.GET("/clouds", ctrl.listClouds)
		api.POST("/clouds", ctrl.createCloud)
		api.GET("/clouds/:id", ctrl.getCloud)
		api.PUT("/clouds/:id", ctrl.updateCloud)
		api.DELETE("/clouds/:id", ctrl.deleteCloud)

		// Members
		api.GET("/clouds/:id/members", ctrl.listMembers)
		api.POST("/clouds/:id/members", ctrl.authorizeMember)
		api.PUT("/clouds/:id/members/:nid", ctrl.updateMember)
		api.DELETE("/clouds/:id/members/:nid", ctrl.removeMember)

		// Peers (real-time status)
		api.GET("/peers", ctrl.listPeers)
	}
}

// --- Auth handlers ---

func (ctrl *Controller) handleLogin(c *gin.Context) {
	var req protocol.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user User
	if err := ctrl.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := GenerateToken(&user, ctrl.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}

	c.JSON(http.StatusOK, protocol.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (ctrl *Controller) handleRegister(c *gin.Context) {
	var req protocol.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The first user registers freely; later registrations require an
	// existing admin session.
	var count int64
	ctrl.db.Model(&User{}).Count(&count)
	if count > 0 {
		authHeader := c.GetHeader("Authorization")
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == "" || tokenStr == authHeader {
			c.JSON(http.StatusForbidden, gin.H{"error": "registration requires admin authentication"})
			return
		}
		if _, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(ctrl.jwtSecret), nil
		}); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "registration requires admin authentication"})
			return
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := User{
		Username: req.Username,
		Password: hash,
		Role:     "admin",
	}
	if err := ctrl.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

// --- Cloud handlers ---

func (ctrl *Controller) listClouds(c *gin.Context) {
	var clouds []Cloud
	ctrl.db.Find(&clouds)

	online := ctrl.ws.GetOnlineNodes()
	result := make([]protocol.Cloud, 0, len(clouds))
	for _, cl := range clouds {
		var memberCount int64
		ctrl.db.Model(&Member{}).Where("cloud_id = ?", cl.ID).Count(&memberCount)

		var onlineCount int
		var members []Member
		ctrl.db.Where("cloud_id = ? AND authorized = ?", cl.ID, true).Find(&members)
		for _, m := range members {
			if online[m.NodeAddress] {
				onlineCount++
			}
		}

		result = append(result, protocol.Cloud{
			ID:          cl.ID,
			Name:        cl.Name,
			Description: cl.Description,
			MTU:         cl.MTU,
			MemberCount: int(memberCount),
			OnlineCount: onlineCount,
			CreatedAt:   cl.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, result)
}

func (ctrl *Controller) createCloud(c *gin.Context) {
	var req protocol.CreateCloudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var idBytes [4]byte
	rand.Read(idBytes[:])
	cloudID := binary.BigEndian.Uint32(idBytes[:])

	mtu := req.MTU
	if mtu == 0 {
		mtu = 1500
	}

	// The admission token is the weak 64-bit key every node in the cloud
	// must present on the core wire protocol; it is not a cryptographic
	// secret, only a shared value.
	var tokenBytes [8]byte
	rand.Read(tokenBytes[:])
	tokenHex := hex.EncodeToString(tokenBytes[:])

	cloud := Cloud{
		ID:          cloudID,
		Name:        req.Name,
		Description: req.Description,
		MTU:         mtu,
		Token:       tokenHex,
	}

	if err := ctrl.db.Create(&cloud).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create cloud failed"})
		return
	}

	c.JSON(http.StatusCreated, protocol.CreateCloudResponse{
		Cloud: protocol.Cloud{
			ID:        cloud.ID,
			Name:      cloud.Name,
			MTU:       cloud.MTU,
			CreatedAt: cloud.CreatedAt,
		},
		Token: cloud.Token,
	})
}

func (ctrl *Controller) getCloud(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}

	var cloud Cloud
	if err := ctrl.db.First(&cloud, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cloud not found"})
		return
	}

	c.JSON(http.StatusOK, cloud)
}

func (ctrl *Controller) updateCloud(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}

	var cloud Cloud
	if err := ctrl.db.First(&cloud, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cloud not found"})
		return
	}

	var req protocol.CreateCloudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.MTU > 0 {
		updates["mtu"] = req.MTU
	}

	ctrl.db.Model(&cloud).Updates(updates)
	ctrl.db.First(&cloud, id)

	c.JSON(http.StatusOK, cloud)
}

func (ctrl *Controller) deleteCloud(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}
	ctrl.db.Delete(&Cloud{}, id)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- Member handlers ---

func (ctrl *Controller) listMembers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}

	var members []Member
	ctrl.db.Where("cloud_id = ?", id).Preload("Node").Find(&members)

	online := ctrl.ws.GetOnlineNodes()
	result := make([]protocol.Member, 0, len(members))
	for _, m := range members {
		result = append(result, protocol.Member{
			CloudID:     m.CloudID,
			NodeAddress: m.NodeAddress,
			Authorized:  m.Authorized,
			Name:        m.Name,
			Online:      online[m.NodeAddress],
			Platform:    m.Node.Platform,
			LastSeen:    m.Node.LastSeen,
			CreatedAt:   m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, result)
}

func (ctrl *Controller) authorizeMember(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}

	var req protocol.AuthorizeMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cloud Cloud
	if err := ctrl.db.First(&cloud, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cloud not found"})
		return
	}

	member := Member{
		CloudID:     uint32(id),
		NodeAddress: req.NodeAddress,
		Authorized:  req.Authorized,
		Name:        req.Name,
	}

	result := ctrl.db.Where("cloud_id = ? AND node_address = ?", id, req.NodeAddress).
		Assign(member).FirstOrCreate(&member)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorize member failed"})
		return
	}

	if req.Authorized {
		var node Node
		if err := ctrl.db.First(&node, "address = ?", req.NodeAddress).Error; err == nil {
			// Push the cloud's token and current bootstrap peer list to
			// the newly authorized node, and tell already-connected
			// nodes about it.
			ctrl.ws.SendCloudConfigToNode(req.NodeAddress, cloud)
			ctrl.ws.BroadcastPeerUpdate(uint32(id), "add", protocol.PeerInfo{
				Address: node.Address,
				Name:    req.Name,
			})
		}
	}

	c.JSON(http.StatusOK, member)
}

func (ctrl *Controller) updateMember(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}
	nodeAddr := c.Param("nid")

	var req protocol.AuthorizeMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{"authorized": req.Authorized}
	if req.Name != "" {
		updates["name"] = req.Name
	}

	result := ctrl.db.Model(&Member{}).
		Where("cloud_id = ? AND node_address = ?", id, nodeAddr).
		Updates(updates)
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}

	var member Member
	ctrl.db.First(&member, "cloud_id = ? AND node_address = ?", id, nodeAddr)
	c.JSON(http.StatusOK, member)
}

func (ctrl *Controller) removeMember(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cloud ID"})
		return
	}
	nodeAddr := c.Param("nid")

	ctrl.db.Where("cloud_id = ? AND node_address = ?", id, nodeAddr).Delete(&Member{})

	ctrl.ws.BroadcastPeerUpdate(uint32(id), "remove", protocol.PeerInfo{Address: nodeAddr})

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- Peer status ---

func (ctrl *Controller) listPeers(c *gin.Context) {
	online := ctrl.ws.GetOnlineNodes()
	type nodeWithStatus struct {
		Address  string    `json:"address"`
		Platform string    `json:"platform"`
		Online   bool      `json:"online"`
		LastSeen time.Time `json:"last_seen"`
	}

	var nodes []Node
	ctrl.db.Find(&nodes)

	result := make([]nodeWithStatus, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, nodeWithStatus{
			Address:  n.Address,
			Platform: n.Platform,
			Online:   online[n.Address],
			LastSeen: n.LastSeen,
		})
	}
	c.JSON(http.StatusOK, result)
}
