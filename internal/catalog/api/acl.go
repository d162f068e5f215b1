package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// aclCreateRequest is the body of the acl/create endpoint. Template is the
// optional permission template expanded on studies ("admin", "analyst",
// "locked").
type aclCreateRequest struct {
	Members     []string `json:"members"`
	Permissions []string `json:"permissions"`
	Template    string   `json:"template,omitempty"`
}

// aclUpdateRequest carries the permission delta. Set replaces the whole
// entry and is exclusive with Add and Remove.
type aclUpdateRequest struct {
	Set    []string `json:"set,omitempty"`
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// aclRoutes mounts the five ACL endpoints for one entity segment. The param
// name must be unique per path position or chi rejects the route tree.
func (s *Server) aclRoutes(r chi.Router, segment, paramName string, kind model.Kind) {
	base := fmt.Sprintf("/%s/{%s}", segment, paramName)
	r.Post(base+"/acl/create", s.createAcl(paramName, kind))
	r.Get(base+"/acl", s.listAcls(paramName, kind))
	r.Get(base+"/acl/{member}/info", s.memberAcl(paramName, kind))
	r.Post(base+"/acl/{member}/update", s.updateAcl(paramName, kind))
	r.Get(base+"/acl/{member}/delete", s.deleteAcl(paramName, kind))
}

// aclRef resolves the path parameter into a permission-check reference.
func (s *Server) aclRef(r *http.Request, paramName string, kind model.Kind) (authorization.EntityRef, error) {
	ctx := r.Context()
	caller := principal(r)
	ref := chi.URLParam(r, paramName)
	if kind == model.KindStudy {
		resource, err := s.catalog.ResolveStudy(ctx, caller, ref)
		if err != nil {
			return authorization.EntityRef{}, err
		}
		return authorization.EntityRef{Kind: model.KindStudy, ID: resource.StudyID, StudyID: resource.StudyID}, nil
	}
	resource, err := s.catalog.ResolveEntity(ctx, caller, kind, ref)
	if err != nil {
		return authorization.EntityRef{}, err
	}
	return s.catalog.EntityRef(ctx, kind, resource.ID)
}

func (s *Server) createAcl(paramName string, kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req aclCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.fail(w, common.NewErrInvalidArgument("malformed request body: %v", err))
			return
		}
		ref, err := s.aclRef(r, paramName, kind)
		if err != nil {
			s.fail(w, err)
			return
		}
		auth := s.catalog.Authorization()
		var created []model.AclEntry
		if kind == model.KindStudy {
			created, err = auth.CreateStudyAcls(r.Context(), principal(r), ref.StudyID, req.Members, req.Permissions, req.Template)
		} else {
			created, err = auth.CreateAcls(r.Context(), principal(r), ref, req.Members, req.Permissions)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, common.NewQueryResult(strings.Join(req.Members, ","), 0, created))
	}
}

func (s *Server) listAcls(paramName string, kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := s.aclRef(r, paramName, kind)
		if err != nil {
			s.fail(w, err)
			return
		}
		acls, err := s.catalog.Authorization().GetAllAcls(r.Context(), principal(r), ref)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, common.NewQueryResult(chi.URLParam(r, paramName), 0, acls))
	}
}

func (s *Server) memberAcl(paramName string, kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := s.aclRef(r, paramName, kind)
		if err != nil {
			s.fail(w, err)
			return
		}
		member := chi.URLParam(r, "member")
		entry, err := s.catalog.Authorization().GetMemberAcl(r.Context(), principal(r), ref, member)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, common.NewQueryResult(member, 0, []model.AclEntry{entry}))
	}
}

func (s *Server) updateAcl(paramName string, kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req aclUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.fail(w, common.NewErrInvalidArgument("malformed request body: %v", err))
			return
		}
		ref, err := s.aclRef(r, paramName, kind)
		if err != nil {
			s.fail(w, err)
			return
		}
		member := chi.URLParam(r, "member")
		entry, err := s.catalog.Authorization().UpdateAcl(r.Context(), principal(r), ref, member,
			authorization.AclUpdate{Set: req.Set, Add: req.Add, Remove: req.Remove})
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, common.NewQueryResult(member, 0, []model.AclEntry{entry}))
	}
}

func (s *Server) deleteAcl(paramName string, kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := s.aclRef(r, paramName, kind)
		if err != nil {
			s.fail(w, err)
			return
		}
		member := chi.URLParam(r, "member")
		if err := s.catalog.Authorization().RemoveAcl(r.Context(), principal(r), ref, member); err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, common.NewQueryResult(member, 0, []model.AclEntry{}))
	}
}
