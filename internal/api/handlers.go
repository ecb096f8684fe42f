package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearthd/internal/database/models"
	"github.com/hearthd/hearthd/internal/services/pubsub"
	"github.com/hearthd/hearthd/internal/services/schedule"
	"github.com/hearthd/hearthd/internal/services/version"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   version.String(),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports every sensor's current value plus the derived
// relay states and their next switch times.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	sensors, err := s.sensors.FindAll(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	status := make(map[string]string, len(sensors))
	for _, sensor := range sensors {
		status[sensor.Name] = sensor.CurrentValue
	}

	for _, name := range []string{s.cfg.HeatingSensor, s.cfg.HotWaterSensor} {
		on, err := s.schedule.IsCurrentlyOn(ctx, name, now)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		status[name+" is on"] = strconv.FormatBool(on)
	}

	for _, name := range s.cfg.RelaySensors {
		next, err := s.schedule.NextSwitchTime(ctx, name, schedule.ValueUnknown, now)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		// Minute resolution is enough for the dashboard
		if len(next) >= 5 {
			next = next[:5]
		}
		status[name+" next switch"] = next
	}

	respondJSON(w, http.StatusOK, status)
}

// handleRegistry lists the configured gateways with the nodes behind
// each one.
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gateways, err := s.gateways.FindAll(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	for i := range gateways {
		nodes, err := s.nodes.FindByGatewayID(ctx, gateways[i].ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		gateways[i].Nodes = nodes
		gateways[i].Password = ""
	}
	respondJSON(w, http.StatusOK, gateways)
}

// handlePrograms exports the program tables of all relay sensors.
func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	programs := make(map[string]schedule.WeeklyProgram, len(s.cfg.RelaySensors))
	for _, name := range s.cfg.RelaySensors {
		program, err := s.schedule.ReadProgram(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		programs[name] = program
	}
	respondJSON(w, http.StatusOK, programs)
}

// handleGetProgram exports one sensor's program table.
func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	sensor := chi.URLParam(r, "sensor")
	program, err := s.schedule.ReadProgram(r.Context(), sensor)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, program)
}

// handlePutProgram replaces one sensor's program. The body maps day
// ("0".."6") to the day's ordered intervals.
func (s *Server) handlePutProgram(w http.ResponseWriter, r *http.Request) {
	sensor := chi.URLParam(r, "sensor")

	var body map[string][]schedule.ProgramInterval
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	intervals := make(map[int][]schedule.ProgramInterval, len(body))
	for key, dayIntervals := range body {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid day %q", key))
			return
		}
		intervals[day] = dayIntervals
	}

	if err := s.schedule.WriteProgram(r.Context(), sensor, intervals); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.events.Publish(pubsub.TopicProgramUpdated, sensor, sensor)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type setValueRequest struct {
	Value string `json:"value"`
	Time  string `json:"time,omitempty"`
}

// handleSetSensorValue pushes a value to a sensor over MQTT and, for
// scheduled relays, reports when the schedule next changes that value.
func (s *Server) handleSetSensorValue(w http.ResponseWriter, r *http.Request) {
	sensor := chi.URLParam(r, "sensor")

	var body setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	payload := body.Value
	if body.Time != "" {
		// A timed set carries its trigger time with the value
		payload = payload + "," + body.Time
	}
	if err := s.publisher.SetSensorValue(sensor, payload); err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}
	s.events.Publish(pubsub.TopicSensorValue, sensor, map[string]string{
		"sensor": sensor,
		"value":  body.Value,
	})

	next, err := s.schedule.NextSwitchTime(r.Context(), sensor, body.Value, s.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if next == "" {
		// Plain set point with no schedule behind it
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "nextSwitch": next[:5]})
}

type onceRequest struct {
	Sensor      string `json:"sensor"`
	Day         int    `json:"day"`
	Time        string `json:"time"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateOnce(w http.ResponseWriter, r *http.Request) {
	var body onceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	trigger, err := s.schedule.CreateOnceTrigger(r.Context(), body.Sensor, body.Day, body.Time, body.Value, body.Description)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, trigger)
}

// handleDeleteOnce removes Once triggers either for a sensor
// (?sensor=) or by description prefix (?prefix=).
func (s *Server) handleDeleteOnce(w http.ResponseWriter, r *http.Request) {
	sensor := r.URL.Query().Get("sensor")
	prefix := r.URL.Query().Get("prefix")

	switch {
	case sensor != "":
		if err := s.schedule.DeleteOnceTriggers(r.Context(), sensor); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	case prefix != "":
		if err := s.schedule.DeletePrefixedTriggers(r.Context(), prefix); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, fmt.Errorf("sensor or prefix required"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type replaceRequest struct {
	Sensor   string `json:"sensor"`
	Day      int    `json:"day"`
	Time     string `json:"time"`
	TargetID uint   `json:"targetId"`
}

func (s *Server) handleCreateReplace(w http.ResponseWriter, r *http.Request) {
	var body replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	trigger, err := s.schedule.CreateReplaceTrigger(r.Context(), body.Sensor, body.Day, body.Time, body.TargetID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, trigger)
}

type switchRequest struct {
	Sensor string `json:"sensor"`
	Status string `json:"status"`
}

func (s *Server) handleSwitchTriggers(w http.ResponseWriter, r *http.Request) {
	var body switchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	status := models.TriggerStatus(body.Status)
	switch status {
	case models.StatusActive, models.StatusExternal, models.StatusOnce, models.StatusReplace:
	default:
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid status %q", body.Status))
		return
	}
	if err := s.schedule.SwitchTriggers(r.Context(), body.Sensor, status); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retimeRequest struct {
	Sensor string `json:"sensor"`
	Day    int    `json:"day"`
	Group  string `json:"group"`
	Value  string `json:"value"`
	Time   string `json:"time"`
}

func (s *Server) handleRetimeTrigger(w http.ResponseWriter, r *http.Request) {
	var body retimeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	trigger, err := s.schedule.UpdateTrigger(r.Context(), body.Sensor, body.Day, body.Group, body.Value, body.Time)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if trigger == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("no matching trigger"))
		return
	}
	respondJSON(w, http.StatusOK, trigger)
}
