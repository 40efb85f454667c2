package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sandeepkv93/omada-captive-portal/internal/http/response"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
)

type InventoryHandler struct {
	svc service.InventoryServiceInterface
}

func NewInventoryHandler(svc service.InventoryServiceInterface) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

func (h *InventoryHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var in service.DeviceDescriptor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	created, err := h.svc.UpdateDevice(r.Context(), in)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	response.Success(w, r, http.StatusOK, map[string]any{
		"message": "Device updated successfully",
		"created": created,
	})
}

func (h *InventoryHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var in service.ClientDescriptor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	created, err := h.svc.UpdateClient(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.Error(w, r, http.StatusNotFound, "Device not found")
			return
		}
		response.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	response.Success(w, r, http.StatusOK, map[string]any{
		"message": "Client updated successfully",
		"created": created,
	})
}

func (h *InventoryHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.svc.ListDevices(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "failed to list devices")
		return
	}
	response.Success(w, r, http.StatusOK, map[string]any{"devices": devices})
}

func (h *InventoryHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.ListClients(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "failed to list clients")
		return
	}
	response.Success(w, r, http.StatusOK, map[string]any{"clients": clients})
}
