package catalog

type chapterSeed struct {
	title       string
	icon        string
	description string
	subchapters [5]string
}

// seeds holds the taxonomy of the quality plan, indexed by chapter id - 1.
var seeds = []chapterSeed{
	{"Sistema de Gestión de Documentos", "fas fa-file-alt", "Gestión integral de documentos del sistema de calidad",
		[5]string{"Procedimiento de Control", "Registro de Documentos", "Distribución de Documentos", "Archivo de Documentos", "Actualización de Documentos"}},
	{"Plan de Ensayos y Controles", "fas fa-flask", "Planificación y ejecución de ensayos de calidad",
		[5]string{"Plan de Ensayos de Materiales", "Control de Calidad de Hormigón", "Ensayo de Suelos", "Control de Acero", "Ensayo de Agregados"}},
	{"Objetivos y Política de Calidad", "fas fa-bullseye", "Definición de objetivos y políticas de calidad",
		[5]string{"Política de Calidad", "Objetivos de Calidad", "Compromiso de la Dirección", "Revisión de la Política", "Comunicación de Objetivos"}},
	{"Programación y Comunicaciones", "fas fa-calendar-alt", "Programación de actividades y comunicaciones",
		[5]string{"Cronograma de Actividades", "Comunicaciones Internas", "Comunicaciones Externas", "Reuniones de Calidad", "Informes de Progreso"}},
	{"Trazabilidad de Materiales", "fas fa-boxes", "Control y seguimiento de materiales",
		[5]string{"Registro de Materiales", "Certificados de Calidad", "Control de Entrada", "Almacenamiento", "Seguimiento de Lotes"}},
	{"Puntos de Inspección y Control", "fas fa-search", "Definición de puntos de control e inspección",
		[5]string{"Plan de Inspección", "Puntos de Control", "Frecuencia de Inspección", "Criterios de Aceptación", "Registro de Inspecciones"}},
	{"Equipos, Maquinaria y Tajos", "fas fa-tools", "Gestión de equipos y maquinaria",
		[5]string{"Registro de Equipos", "Mantenimiento Preventivo", "Control de Operadores", "Seguridad en Equipos", "Rendimiento de Equipos"}},
	{"Calibración de Equipos", "fas fa-cogs", "Calibración y mantenimiento de equipos",
		[5]string{"Plan de Calibración", "Certificados de Calibración", "Frecuencia de Calibración", "Registro de Calibraciones", "Equipos Patrón"}},
	{"Certificados y Materiales", "fas fa-certificate", "Gestión de certificados de materiales",
		[5]string{"Certificados de Materiales", "Control de Proveedores", "Especificaciones Técnicas", "Conformidad de Materiales", "Archivo de Certificados"}},
	{"No Conformidades", "fas fa-exclamation-triangle", "Gestión de no conformidades y acciones correctivas",
		[5]string{"Registro de No Conformidades", "Análisis de Causas", "Acciones Correctivas", "Seguimiento de Acciones", "Prevención de Recurrencia"}},
	{"Control de Calidad y Asistencia", "fas fa-user-check", "Control de calidad y asistencia técnica",
		[5]string{"Control de Calidad", "Asistencia Técnica", "Formación del Personal", "Competencias Técnicas", "Evaluación de Desempeño"}},
	{"Cálculos y Notas Técnicas", "fas fa-calculator", "Cálculos estructurales y notas técnicas",
		[5]string{"Cálculos Estructurales", "Notas Técnicas", "Verificaciones", "Documentación Técnica", "Revisión de Cálculos"}},
	{"Control Geométrico", "fas fa-ruler", "Control geométrico y mediciones",
		[5]string{"Mediciones Geométricas", "Control de Dimensiones", "Tolerancias", "Instrumentos de Medición", "Registro de Mediciones"}},
	{"Control de Planos", "fas fa-drafting-compass", "Gestión y control de planos",
		[5]string{"Revisión de Planos", "Control de Versiones", "Aprobación de Planos", "Distribución de Planos", "Archivo de Planos"}},
	{"Laboratorio", "fas fa-microscope", "Gestión de laboratorio y ensayos",
		[5]string{"Ensayos de Laboratorio", "Equipos de Laboratorio", "Procedimientos de Ensayo", "Registro de Resultados", "Certificación de Laboratorio"}},
	{"Documentación General", "fas fa-folder-open", "Documentación general del sistema",
		[5]string{"Manual de Calidad", "Procedimientos Generales", "Instrucciones de Trabajo", "Registros de Calidad", "Archivo de Documentos"}},
	{"Control Económico de Calidad", "fas fa-chart-line", "Control económico y costos de calidad",
		[5]string{"Costos de Calidad", "Análisis de Rentabilidad", "Presupuestos de Calidad", "Control de Gastos", "Informes Económicos"}},
	{"Normativas", "fas fa-book", "Gestión de normativas y estándares",
		[5]string{"Normas ISO 9001", "Reglamentos Técnicos", "Estándares de Calidad", "Legislación Aplicable", "Actualización de Normas"}},
	{"Pruebas Finales", "fas fa-check-double", "Pruebas finales y recepción",
		[5]string{"Ensayos de Recepción", "Pruebas de Funcionamiento", "Verificación Final", "Certificado de Obra", "Entrega de Proyecto"}},
	{"Auditorías", "fas fa-clipboard-check", "Planificación y ejecución de auditorías",
		[5]string{"Plan de Auditorías", "Auditorías Internas", "Auditorías Externas", "Informes de Auditoría", "Seguimiento de No Conformidades"}},
	{"Informes Mensuales", "fas fa-chart-bar", "Informes mensuales y reportes",
		[5]string{"Resumen de Actividades", "Indicadores de Calidad", "Análisis de Tendencias", "Recomendaciones", "Plan de Mejoras"}},
}
